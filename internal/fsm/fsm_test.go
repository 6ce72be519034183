package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type light string

func TestTable(t *testing.T) {
	tbl, err := NewTable("light",
		Edge[light]{From: "red", To: "green"},
		Edge[light]{From: "green", To: "yellow"},
		Edge[light]{From: "yellow", To: "red"},
	)
	require.NoError(t, err)

	assert.True(t, tbl.Allows("red", "green"))
	assert.False(t, tbl.Allows("red", "yellow"))
	require.NoError(t, tbl.Check("green", "yellow"))
	assert.ErrorIs(t, tbl.Check("green", "red"), ErrInvalidTransition)
	assert.ElementsMatch(t, []light{"yellow"}, tbl.Sources("red"))
}

func TestTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable("dup",
		Edge[light]{From: "red", To: "green"},
		Edge[light]{From: "red", To: "green"},
	)
	require.Error(t, err)
	assert.Panics(t, func() {
		MustTable("dup", Edge[light]{From: "a", To: "b"}, Edge[light]{From: "a", To: "b"})
	})
}
