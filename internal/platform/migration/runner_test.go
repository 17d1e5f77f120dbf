// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPgx5DSN(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/identity":   "pgx5://u:p@db:5432/identity",
		"postgresql://u:p@db:5432/identity": "pgx5://u:p@db:5432/identity",
		"pgx5://u:p@db:5432/identity":       "pgx5://u:p@db:5432/identity",
		"host=db user=u":                    "host=db user=u",
	}

	for input, want := range tests {
		assert.Equal(t, want, ToPgx5DSN(input), input)
	}
}
