//go:build !linux && !darwin

package preflight

// CheckDiskSpace is not measured on this platform.
func (c *Checker) CheckDiskSpace(string) CheckResult {
	return CheckResult{Name: "disk_space", Status: StatusWarn, Message: "not measured on this platform"}
}

// CheckFileDescriptors is not measured on this platform.
func (c *Checker) CheckFileDescriptors() CheckResult {
	return CheckResult{Name: "file_descriptors", Status: StatusWarn, Message: "not measured on this platform"}
}
