package artifact

import (
	"path/filepath"
	"strings"
)

// Layout maps logical artifact names onto the analysis directory. Each
// compilation unit gets its own subdirectory under a/, mirroring the
// source path with the extension stripped, so artifacts of distinct files
// never collide.
type Layout struct {
	Root string
}

// NewLayout creates a layout rooted at the project's analysis directory.
func NewLayout(root string) Layout { return Layout{Root: root} }

func fileStem(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// FileDir returns the artifact directory of one compilation unit.
func (l Layout) FileDir(file string) string {
	return filepath.Join(l.Root, "a", filepath.FromSlash(fileStem(file)))
}

func (l Layout) filePath(file, suffix string) string {
	stem := fileStem(file)
	return filepath.Join(l.FileDir(file), filepath.Base(stem)+suffix)
}

func (l Layout) fnPath(file, fn, suffix string) string {
	stem := filepath.Base(fileStem(file))
	return filepath.Join(l.FileDir(file), stem+"_"+fn+suffix)
}

// DeclsPath returns the per-file declarations document path.
func (l Layout) DeclsPath(file string) string {
	return l.filePath(file, "_decls.json")
}

// DictionaryPath returns the per-file dictionary document path.
func (l Layout) DictionaryPath(file string) string {
	return l.filePath(file, "_cdict.json")
}

// PPOPath returns the primary obligations document path for fn.
func (l Layout) PPOPath(file, fn string) string {
	return l.fnPath(file, fn, "_ppo.json")
}

// SPOPath returns the supporting obligations document path for fn.
func (l Layout) SPOPath(file, fn string) string {
	return l.fnPath(file, fn, "_spo.json")
}

// APIPath returns the interface document path for fn.
func (l Layout) APIPath(file, fn string) string {
	return l.fnPath(file, fn, "_api.json")
}

// InvariantsPath returns the invariants document path for fn.
func (l Layout) InvariantsPath(file, fn string) string {
	return l.fnPath(file, fn, "_inv.json")
}

// GlobalDefinitionsPath returns the linked global declarations document.
func (l Layout) GlobalDefinitionsPath() string {
	return filepath.Join(l.Root, "globaldefinitions.json")
}

// LinkInfoPath returns the cross-reference document for a link target.
func (l Layout) LinkInfoPath(target string) string {
	return filepath.Join(l.Root, target+"_linkinfo.json")
}

// LedgerPath returns the status ledger database path.
func (l Layout) LedgerPath() string {
	return filepath.Join(l.Root, "ledger.db")
}
