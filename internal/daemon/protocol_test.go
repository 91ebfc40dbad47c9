package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fsaudit/internal/store"
)

func TestNewSuccessResponse_EncodesResult(t *testing.T) {
	resp := NewSuccessResponse("req-1", PingResult{Pong: true})

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"pong":true}`, string(resp.Result))
}

func TestNewSuccessResponse_UnencodableResult(t *testing.T) {
	resp := NewSuccessResponse("req-1", make(chan int))

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestError_ImplementsError(t *testing.T) {
	var err error = &Error{Code: ErrCodeJobAlreadyRunning, Message: "busy"}

	assert.Equal(t, "busy (code: -32001)", err.Error())
}

func TestParams_Validate(t *testing.T) {
	t.Run("scan requires root", func(t *testing.T) {
		assert.Error(t, (&ScanParams{RootPath: "  "}).Validate())
		assert.NoError(t, (&ScanParams{RootPath: "/data"}).Validate())
	})

	t.Run("run id must be positive", func(t *testing.T) {
		assert.Error(t, (&RunParams{}).Validate())
		assert.NoError(t, (&RunParams{RunID: 3}).Validate())
	})

	t.Run("page defaults and clamps", func(t *testing.T) {
		p := PageParams{PageQuery: store.PageQuery{RunID: 1, PageIndex: -2}}
		require.NoError(t, p.Validate())
		assert.Equal(t, store.DefaultPageSize, p.PageSize)
		assert.Equal(t, 0, p.PageIndex)

		assert.Error(t, (&PageParams{}).Validate())
	})
}

func TestPageParams_FlatJSON(t *testing.T) {
	// Given: a client-style flat params object
	raw := `{"run_id":7,"page_index":2,"page_size":10,
		"sort":[{"column_id":"file_name","direction":"desc"}],
		"extensions":["pdf"],"subfolder_contains":"finance"}`

	var p PageParams
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	// Then: the embedded query is populated
	assert.Equal(t, int64(7), p.RunID)
	assert.Equal(t, 2, p.PageIndex)
	assert.Equal(t, 10, p.PageSize)
	assert.Equal(t, []store.SortInstruction{{Column: store.SortFileName, Direction: store.SortDesc}}, p.Sort)
	assert.Equal(t, []string{"pdf"}, p.Extensions)
	assert.Equal(t, "finance", p.SubfolderContains)
}

func TestPageResult_FlatJSON(t *testing.T) {
	res := PageResult{
		Page:      store.Page{Rows: []store.FileRecord{}, Total: 11},
		PageIndex: 1,
		PageSize:  5,
		PageCount: 3,
	}

	data, err := json.Marshal(res)

	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[],"total":11,"page_index":1,"page_size":5,"page_count":3}`, string(data))
}
