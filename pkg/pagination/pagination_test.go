// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/pkg/pagination"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      pagination.Params
		wantParam string
	}{
		{name: "defaults", query: "", want: pagination.Params{Page: 1, Limit: pagination.DefaultLimit}},
		{name: "explicit", query: "page=3&limit=10", want: pagination.Params{Page: 3, Limit: 10}},
		{name: "max_limit", query: "limit=200", want: pagination.Params{Page: 1, Limit: pagination.MaxLimit}},
		{name: "limit_too_large", query: "limit=201", wantParam: "limit"},
		{name: "limit_zero", query: "limit=0", wantParam: "limit"},
		{name: "page_negative", query: "page=-1", wantParam: "page"},
		{name: "page_not_numeric", query: "page=two", wantParam: "page"},
		{name: "page_overflow", query: "page=99999999999&limit=200", wantParam: "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			params, err := pagination.Parse(query)
			if tt.wantParam == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, params)
				return
			}

			var paramErr *pagination.ParamError
			require.True(t, errors.As(err, &paramErr))
			assert.Equal(t, tt.wantParam, paramErr.Param)
		})
	}
}

func TestParams_Offset(t *testing.T) {
	assert.Zero(t, pagination.Params{Page: 1, Limit: 50}.Offset())
	assert.Equal(t, 100, pagination.Params{Page: 3, Limit: 50}.Offset())
}

func TestNewMeta(t *testing.T) {
	meta := pagination.NewMeta(pagination.Params{Page: 1, Limit: 2}, 3)
	assert.Equal(t, 2, meta.TotalPages)
	assert.True(t, meta.HasNext)

	last := pagination.NewMeta(pagination.Params{Page: 2, Limit: 2}, 3)
	assert.False(t, last.HasNext)

	empty := pagination.NewMeta(pagination.Params{Page: 1, Limit: 2}, 0)
	assert.Zero(t, empty.TotalPages)
	assert.False(t, empty.HasNext)
}
