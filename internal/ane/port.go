package ane

import "github.com/23skdu/longbow-ane/internal/model"

// MaxTiles bounds every logical port index.
const MaxTiles = model.MaxTiles

// Port is a logical input or output index. Input port 0 is the first input
// slot of the model, whatever its physical slot number.
type Port uint8

// Ports lists every valid port. Indexing it with a constant is checked by the
// compiler, so
//
//	nn.Send(buf, ane.Ports[2])
//
// does not build when the constant is MaxTiles or more.
var Ports = func() (p [MaxTiles]Port) {
	for i := range p {
		p[i] = Port(i)
	}
	return p
}()

// portTable maps logical ports to physical slots. It is built once by Init.
type portTable struct {
	name  string
	slots []int
}

func (t portTable) count() int { return len(t.slots) }

// lookup returns the physical slot for p, or false if p is not declared.
func (t portTable) lookup(p Port) (int, bool) {
	if int(p) >= len(t.slots) {
		return 0, false
	}
	return t.slots[p], true
}
