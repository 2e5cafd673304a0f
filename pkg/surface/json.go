package surface

import (
	"encoding/json"
	"io"

	"github.com/storysize/storysize/pkg/estimation"
)

// JSONRenderer marshals an Estimation to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, est *estimation.Estimation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(est)
}
