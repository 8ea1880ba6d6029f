package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CensoredLoader_Reads_All_Embedded_Languages(t *testing.T) {
	req := require.New(t)

	data, err := NewCensoredLoader().LoadAll()
	req.NoError(err)

	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
	req.Contains(data.Words, "bigot")
	req.Contains(data.Words, "arnaqueur")

	// Deduplicated: no word appears twice.
	seen := make(map[string]struct{}, len(data.Words))
	for _, w := range data.Words {
		_, dup := seen[w]
		req.Falsef(dup, "duplicate word %q", w)
		seen[w] = struct{}{}
	}
}
