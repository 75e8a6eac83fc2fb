package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyang/nlq-bench/internal/domain/schema"
)

func TestUPI(t *testing.T) {
	s := schema.UPI()
	assert.True(t, len(s) > 0)
	assert.Contains(t, s, "upi_txn.urcs_ft_txns")
	assert.Contains(t, s, "txnamount")
	assert.Equal(t, s, schema.UPI(), "schema context is static")
}
