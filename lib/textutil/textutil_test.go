package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	require.Equal(t, "***@example.com", RedactEmail("user@example.com"))
	require.Equal(t, "***@example.com", RedactEmail("long.address+tag@example.com"))
	require.Equal(t, "***", RedactEmail("not-an-email"))
	require.Equal(t, "***", RedactEmail(""))
}
