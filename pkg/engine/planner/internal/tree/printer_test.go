package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrinter(t *testing.T) {
	root := NewNode("Root", "")
	lvl1 := root.AddChild("Join", "3", []Property{
		NewProperty("how", false, "inner"),
		NewProperty("left_on", true, "col(a)"),
		NewProperty("right_on", true, "col(a)", "col(b)"),
	})
	lvl1.AddChild("CsvScan", "1", []Property{NewProperty("path", false, "left.csv")})
	lvl1.AddChild("CsvScan", "2", []Property{NewProperty("path", false, "right.csv")})

	b := &strings.Builder{}
	NewPrinter(b).Print(root)

	expected := `
Root
└── Join #3 how=inner left_on=(col(a)) right_on=(col(a), col(b))
    ├── CsvScan #1 path=left.csv
    └── CsvScan #2 path=right.csv
`
	require.Equal(t, expected, "\n"+b.String())
}

func TestPrinterComments(t *testing.T) {
	root := NewNode("Projection", "")
	root.AddComment("schema", "", []Property{NewProperty("a", false, "int64")})
	scan := root.AddChild("CsvScan", "", nil)
	scan.AddComment("schema", "", []Property{NewProperty("a", false, "int64")})

	expected := `
Projection
│   └── schema a=int64
└── CsvScan
        └── schema a=int64
`
	require.Equal(t, expected, "\n"+String(root))
}
