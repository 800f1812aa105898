package database

import (
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolCollector(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	collector := NewPoolCollector(db)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	// 3个连接状态 + 等待次数 + 等待时长 + 3个关闭原因
	assert.Equal(t, 8, testutil.CollectAndCount(collector))

	expected := `
# HELP database_wait_count_total Total number of connections waited for
# TYPE database_wait_count_total counter
database_wait_count_total 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "database_wait_count_total"))
}
