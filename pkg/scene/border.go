package scene

import (
	"encoding/xml"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Border is a border-annotation file: a named structure plus an ordered
// vertex sequence along the border. Border files record one vertex triple
// per line (they are defined on surface faces); only the first vertex of
// each line is kept.
type Border struct {
	Structure string
	Vertices  []int
}

// LoadBorder reads a border file.
func LoadBorder(path string) (*Border, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read border file")
	}
	root := &Node{}
	if err := xml.Unmarshal(data, root); err != nil {
		return nil, errors.Wrap(err, "failed to parse border file")
	}

	structure := root.Attr("Structure")
	if structure == "" {
		return nil, errors.New("border file has no Structure attribute")
	}
	verticesNode := root.Find("Vertices", nil)
	if verticesNode == nil {
		return nil, errors.New("border file has no Vertices node")
	}

	border := &Border{Structure: structure}
	for _, line := range strings.Split(verticesNode.Content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "bad border vertex %q", fields[0])
		}
		border.Vertices = append(border.Vertices, v)
	}
	if len(border.Vertices) == 0 {
		return nil, errors.New("border file is empty")
	}
	return border, nil
}
