// Package zobject implements the object tree: the attribute flags,
// parent/sibling/child links, and the short name stored in every
// object's property table header.
package zobject

import (
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zerrs"
	"github.com/brinkhall/goz/zstring"
)

// Object is a single entry decoded from the object tree.
type Object struct {
	BaseAddress     uint32
	Id              uint16
	Name            string
	Attributes      uint64 // top 32 bits valid in v1-3, top 48 bits in v4+
	Parent          uint16
	Sibling         uint16
	Child           uint16
	PropertyPointer uint16
}

// MaxObjectID returns the largest legal object number for version.
func MaxObjectID(version uint8) uint16 {
	if version >= 4 {
		return 65535
	}
	return 255
}

func attributeBytes(version uint8) uint32 {
	if version >= 4 {
		return 6
	}
	return 4
}

func entryBase(core *zcore.Core, id uint16) uint32 {
	if core.Version >= 4 {
		return uint32(core.ObjectTableBase) + 63*2 + uint32(id-1)*14
	}
	return uint32(core.ObjectTableBase) + 31*2 + uint32(id-1)*9
}

// Get decodes object id from the tree.
func Get(core *zcore.Core, alphabets *zstring.Alphabets, id uint16) (Object, error) {
	if id == 0 {
		return Object{}, zerrs.InvalidObjectError{ObjectID: 0}
	}
	if max := MaxObjectID(core.Version); id > max {
		return Object{}, zerrs.InvalidObjectError{ObjectID: id, MaxID: max}
	}

	base := entryBase(core, id)
	attrs, err := readAttributes(core, base)
	if err != nil {
		return Object{}, err
	}

	obj := Object{BaseAddress: base, Id: id, Attributes: attrs}

	if core.Version >= 4 {
		obj.Parent, err = core.ReadWord(base + 6)
		if err != nil {
			return Object{}, err
		}
		obj.Sibling, err = core.ReadWord(base + 8)
		if err != nil {
			return Object{}, err
		}
		obj.Child, err = core.ReadWord(base + 10)
		if err != nil {
			return Object{}, err
		}
		obj.PropertyPointer, err = core.ReadWord(base + 12)
		if err != nil {
			return Object{}, err
		}
	} else {
		parent, err := core.ReadByte(base + 4)
		if err != nil {
			return Object{}, err
		}
		sibling, err := core.ReadByte(base + 5)
		if err != nil {
			return Object{}, err
		}
		child, err := core.ReadByte(base + 6)
		if err != nil {
			return Object{}, err
		}
		obj.Parent, obj.Sibling, obj.Child = uint16(parent), uint16(sibling), uint16(child)

		obj.PropertyPointer, err = core.ReadWord(base + 7)
		if err != nil {
			return Object{}, err
		}
	}

	nameLength, err := core.ReadByte(uint32(obj.PropertyPointer))
	if err != nil {
		return Object{}, err
	}
	if nameLength > 0 {
		name, _, err := zstring.Decode(core, uint32(obj.PropertyPointer)+1, alphabets)
		if err != nil {
			return Object{}, err
		}
		obj.Name = name
	}

	return obj, nil
}

func readAttributes(core *zcore.Core, base uint32) (uint64, error) {
	n := attributeBytes(core.Version)
	var v uint64
	for i := uint32(0); i < n; i++ {
		b, err := core.ReadByte(base + i)
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (56 - 8*i)
	}
	return v, nil
}

func writeAttributes(core *zcore.Core, base uint32, attrs uint64) error {
	n := attributeBytes(core.Version)
	for i := uint32(0); i < n; i++ {
		if err := core.WriteByte(base+i, uint8(attrs>>(56-8*i))); err != nil {
			return err
		}
	}
	return nil
}

func maxAttribute(version uint8) uint16 {
	if version >= 4 {
		return 47
	}
	return 31
}

// TestAttribute reports whether attribute is set.
func (o *Object) TestAttribute(version uint8, attribute uint16) (bool, error) {
	if attribute > maxAttribute(version) {
		return false, zerrs.InvalidAttributeError{Attribute: attribute, Max: maxAttribute(version)}
	}
	mask := uint64(1) << (63 - attribute)
	return o.Attributes&mask == mask, nil
}

// SetAttribute sets attribute on o and persists the change to memory.
func (o *Object) SetAttribute(core *zcore.Core, attribute uint16) error {
	if attribute > maxAttribute(core.Version) {
		return zerrs.InvalidAttributeError{Attribute: attribute, Max: maxAttribute(core.Version)}
	}
	o.Attributes |= uint64(1) << (63 - attribute)
	return writeAttributes(core, o.BaseAddress, o.Attributes)
}

// ClearAttribute clears attribute on o and persists the change to memory.
func (o *Object) ClearAttribute(core *zcore.Core, attribute uint16) error {
	if attribute > maxAttribute(core.Version) {
		return zerrs.InvalidAttributeError{Attribute: attribute, Max: maxAttribute(core.Version)}
	}
	o.Attributes &^= uint64(1) << (63 - attribute)
	return writeAttributes(core, o.BaseAddress, o.Attributes)
}

// SetParent updates the parent link in memory and on o.
func (o *Object) SetParent(core *zcore.Core, parent uint16) error {
	o.Parent = parent
	if core.Version >= 4 {
		return core.WriteWord(o.BaseAddress+6, parent)
	}
	return core.WriteByte(o.BaseAddress+4, uint8(parent))
}

// SetSibling updates the sibling link in memory and on o.
func (o *Object) SetSibling(core *zcore.Core, sibling uint16) error {
	o.Sibling = sibling
	if core.Version >= 4 {
		return core.WriteWord(o.BaseAddress+8, sibling)
	}
	return core.WriteByte(o.BaseAddress+5, uint8(sibling))
}

// SetChild updates the child link in memory and on o.
func (o *Object) SetChild(core *zcore.Core, child uint16) error {
	o.Child = child
	if core.Version >= 4 {
		return core.WriteWord(o.BaseAddress+10, child)
	}
	return core.WriteByte(o.BaseAddress+6, uint8(child))
}

// Unlink removes o from its parent's child chain, rewiring the parent's
// child pointer or the preceding sibling's link as required. It does not
// clear o's own parent link; callers (remove_obj, insert_obj) decide
// what o.Parent becomes next.
func Unlink(core *zcore.Core, alphabets *zstring.Alphabets, o *Object) error {
	if o.Parent == 0 {
		return nil
	}

	parent, err := Get(core, alphabets, o.Parent)
	if err != nil {
		return err
	}

	if parent.Child == o.Id {
		if err := parent.SetChild(core, o.Sibling); err != nil {
			return err
		}
		return nil
	}

	sibling, err := Get(core, alphabets, parent.Child)
	if err != nil {
		return err
	}
	for sibling.Sibling != o.Id {
		sibling, err = Get(core, alphabets, sibling.Sibling)
		if err != nil {
			return err
		}
	}
	return sibling.SetSibling(core, o.Sibling)
}

// MoveTo detaches o from its current parent (if any) and inserts it as
// the first child of newParent, per the insert_obj/remove_obj semantics.
func MoveTo(core *zcore.Core, alphabets *zstring.Alphabets, o *Object, newParentID uint16) error {
	if err := Unlink(core, alphabets, o); err != nil {
		return err
	}

	if newParentID == 0 {
		return o.SetParent(core, 0)
	}

	newParent, err := Get(core, alphabets, newParentID)
	if err != nil {
		return err
	}

	if err := o.SetSibling(core, newParent.Child); err != nil {
		return err
	}
	if err := o.SetParent(core, newParentID); err != nil {
		return err
	}
	return newParent.SetChild(core, o.Id)
}
