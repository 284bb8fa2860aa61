package section

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateMermaid(t *testing.T) {
	t.Run("accepts a well-formed flowchart", func(t *testing.T) {
		code := `flowchart TD
    A[Start Process] --> B[Analyze Data]
    B --> C[Generate Output]
    style A fill:#e8f5e9,stroke:#333,stroke-width:2px,color:#000`
		require.NoError(t, ValidateMermaid(code))
	})

	t.Run("accepts graph and sequence diagrams", func(t *testing.T) {
		require.NoError(t, ValidateMermaid("graph LR\n    A[One] --> B[Two]"))
		require.NoError(t, ValidateMermaid("sequenceDiagram\n    Alice->>Bob: Hello"))
	})

	t.Run("rejects empty code", func(t *testing.T) {
		require.Error(t, ValidateMermaid(""))
		require.Error(t, ValidateMermaid("   \n  "))
	})

	t.Run("rejects unknown diagram types", func(t *testing.T) {
		err := ValidateMermaid("pie\n    \"A\": 10")
		require.Error(t, err)
		require.Contains(t, err.Error(), "must start with")
	})

	t.Run("rejects unmatched brackets", func(t *testing.T) {
		err := ValidateMermaid("flowchart TD\n    A[Broken --> B[Fine]")
		require.Error(t, err)
		require.Contains(t, err.Error(), "unmatched brackets")
	})

	t.Run("ignores comments and blank lines", func(t *testing.T) {
		code := "flowchart TD\n\n    %% just a comment with [ one bracket\n    A[Ok] --> B[Fine]"
		require.NoError(t, ValidateMermaid(code))
	})

	t.Run("rejects malformed style lines", func(t *testing.T) {
		err := ValidateMermaid("flowchart TD\n    A[Ok] --> B[Fine]\n    style A nonsense")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid style syntax")
	})
}
