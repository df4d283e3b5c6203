// Package scene loads renderer scene documents, rewrites their referenced
// file paths, and produces frame-specific copies with one connectivity row
// marked active. Scene files are XML; the document is held as a generic
// element tree so unknown content round-trips untouched.
package scene

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Node is one element of the scene document tree.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// Attr returns the value of the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Text returns the element's character data with surrounding whitespace
// trimmed.
func (n *Node) Text() string {
	return strings.TrimSpace(n.Content)
}

// SetText replaces the element's character data.
func (n *Node) SetText(s string) {
	n.Content = s
}

func (n *Node) matches(tag string, attrs map[string]string) bool {
	if n.XMLName.Local != tag {
		return false
	}
	for k, v := range attrs {
		if n.Attr(k) != v {
			return false
		}
	}
	return true
}

// FindAll returns every descendant element (depth first, document order)
// with the given tag whose attributes include all of attrs.
func (n *Node) FindAll(tag string, attrs map[string]string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.matches(tag, attrs) {
			out = append(out, c)
		}
		out = append(out, c.FindAll(tag, attrs)...)
	}
	return out
}

// Find returns the first FindAll match, or nil.
func (n *Node) Find(tag string, attrs map[string]string) *Node {
	for _, c := range n.Children {
		if c.matches(tag, attrs) {
			return c
		}
		if found := c.Find(tag, attrs); found != nil {
			return found
		}
	}
	return nil
}

// Child returns the first direct child with the given tag and attributes,
// or nil.
func (n *Node) Child(tag string, attrs map[string]string) *Node {
	for _, c := range n.Children {
		if c.matches(tag, attrs) {
			return c
		}
	}
	return nil
}

// Clone deep-copies the element and its subtree.
func (n *Node) Clone() *Node {
	out := &Node{XMLName: n.XMLName, Content: n.Content}
	out.Attrs = append([]xml.Attr(nil), n.Attrs...)
	out.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		out.Children[i] = c.Clone()
	}
	return out
}

// Document is one loaded scene file: the full element tree, the source
// location, and the name of the scene in use. Referenced data-file paths
// are absolute after Load. Documents are mutated only through copies.
type Document struct {
	Root *Node

	// Path is the scene file this document was loaded from.
	Path string

	// BaseDir is Path's directory; relative references resolve against it.
	BaseDir string

	// Name selects the scene inside the file.
	Name string
}

// pathName object names whose text holds a referenced data-file path.
var pathNameObjects = []string{
	"dataFileName_V2",
	"fileName",
	"m_selectedSurfacePathName",
	"primaryAnatomicalSurface",
}

// Load parses a scene file, checks the named scene exists, and rewrites
// all referenced data-file paths from relative to absolute against the
// scene file's own directory.
func Load(path, name string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve scene path")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scene file")
	}
	root := &Node{}
	if err := xml.Unmarshal(data, root); err != nil {
		return nil, errors.Wrap(err, "failed to parse scene file")
	}
	doc := &Document{
		Root:    root,
		Path:    abs,
		BaseDir: filepath.Dir(abs),
		Name:    name,
	}
	if _, err := doc.sceneSubtree(); err != nil {
		return nil, err
	}
	doc.resolvePaths()
	return doc, nil
}

// sceneSubtree returns the full-type scene with the document's name, or
// the root when no name was given.
func (d *Document) sceneSubtree() (*Node, error) {
	if d.Name == "" {
		return d.Root, nil
	}
	for _, scene := range d.Root.FindAll("Scene", map[string]string{"Type": "SCENE_TYPE_FULL"}) {
		if n := scene.Child("Name", nil); n != nil && n.Text() == d.Name {
			return scene, nil
		}
	}
	return nil, errors.Errorf("scene with name %q not found in %s", d.Name, d.Path)
}

// pathElements lists the elements of the selected scene whose text is a
// referenced data-file path.
func (d *Document) pathElements() []*Node {
	scene, err := d.sceneSubtree()
	if err != nil {
		return nil
	}
	var out []*Node
	for _, name := range pathNameObjects {
		out = append(out, scene.FindAll("Object", map[string]string{"Type": "pathName", "Name": name})...)
	}
	return out
}

func (d *Document) resolvePaths() {
	for _, el := range d.pathElements() {
		text := el.Text()
		if text == "" || filepath.IsAbs(text) {
			continue
		}
		el.SetText(filepath.Clean(filepath.Join(d.BaseDir, text)))
	}
}

// Files returns all referenced data-file paths with the given suffix.
func (d *Document) Files(ext string) []string {
	var out []string
	for _, el := range d.pathElements() {
		if text := el.Text(); text != "" && strings.HasSuffix(text, ext) {
			out = append(out, text)
		}
	}
	return out
}

// ConnectivityPath returns the scene's connectivity matrix file: the
// first dense-timeseries file, else the first dense-connectivity file.
func (d *Document) ConnectivityPath() (string, error) {
	for _, ext := range []string{".dtseries.nii", ".dconn.nii"} {
		if files := d.Files(ext); len(files) > 0 {
			return files[0], nil
		}
	}
	return "", errors.Errorf("no connectivity file found in scene %s", d.Path)
}

// SurfacePath returns the anatomical surface mesh path for the named
// hemisphere structure.
func (d *Document) SurfacePath(structure string) (string, error) {
	scene, err := d.sceneSubtree()
	if err != nil {
		return "", err
	}
	for _, obj := range scene.FindAll("Object", map[string]string{"Class": "BrainStructure"}) {
		st := obj.Find("Object", map[string]string{"Type": "enumeratedType", "Name": "m_structure"})
		if st == nil || st.Text() != structure {
			continue
		}
		p := obj.Find("Object", map[string]string{"Type": "pathName", "Name": "primaryAnatomicalSurface"})
		if p != nil && p.Text() != "" {
			return p.Text(), nil
		}
	}
	return "", errors.Errorf("no anatomical surface for %s in %s", structure, d.Path)
}

// Clone returns an independent deep copy of the document.
func (d *Document) Clone() *Document {
	return &Document{
		Root:    d.Root.Clone(),
		Path:    d.Path,
		BaseDir: d.BaseDir,
		Name:    d.Name,
	}
}

// Save writes the document to the given path.
func (d *Document) Save(path string) error {
	data, err := xml.Marshal(d.Root)
	if err != nil {
		return errors.Wrap(err, "failed to serialize scene")
	}
	out := append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return errors.Wrap(err, "failed to write scene")
	}
	return nil
}
