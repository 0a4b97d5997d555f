package zobject

import (
	"github.com/brinkhall/goz/zcore"
	"github.com/brinkhall/goz/zerrs"
)

// Property is a single decoded entry from an object's property table, or
// (when DataAddress is 0) a fallback onto the property defaults table.
type Property struct {
	Id                   uint8
	Length               uint8
	Data                 []uint8
	PropertyHeaderLength uint8
	Address              uint32
	DataAddress          uint32
}

// PropertyLength works back from the address of a property's first data
// byte to the property's length, per the size-byte encoding rules.
func PropertyLength(core *zcore.Core, addr uint32, version uint8) (uint16, error) {
	if addr == 0 {
		return 0, nil // special case required by some story files
	}

	prevByte, err := core.ReadByte(addr - 1)
	if err != nil {
		return 0, err
	}

	switch {
	case version <= 3:
		return uint16(prevByte>>5) + 1, nil
	case prevByte&0b1000_0000 != 0:
		length := prevByte & 0b11_1111
		if length == 0 {
			return 64, nil // 12.4.2.1.1: zero length byte means length 64
		}
		return uint16(length), nil
	default:
		return uint16((prevByte>>6)&1) + 1, nil
	}
}

func propertyTableStart(core *zcore.Core, o *Object) (uint32, error) {
	nameLength, err := core.ReadByte(uint32(o.PropertyPointer))
	if err != nil {
		return 0, err
	}
	return uint32(o.PropertyPointer) + 1 + uint32(nameLength)*2, nil
}

// PropertyAt decodes the property whose size byte(s) begin at addr.
func PropertyAt(core *zcore.Core, addr uint32) (Property, error) {
	sizeByte, err := core.ReadByte(addr)
	if err != nil {
		return Property{}, err
	}

	length := (sizeByte >> 5) + 1
	id := sizeByte & 0b1_1111
	headerLength := uint8(1)

	if core.Version >= 4 {
		if sizeByte>>7 == 1 {
			secondByte, err := core.ReadByte(addr + 1)
			if err != nil {
				return Property{}, err
			}
			length = secondByte & 0b11_1111
			if length == 0 {
				length = 64
			}
			id = sizeByte & 0b11_1111
			headerLength = 2
		} else {
			length = ((sizeByte >> 6) & 1) + 1
			id = sizeByte & 0b11_1111
		}
	}

	dataAddress := addr + uint32(headerLength)
	data, err := core.ReadSlice(dataAddress, dataAddress+uint32(length))
	if err != nil {
		return Property{}, err
	}

	return Property{
		Id:                   id,
		Length:               length,
		Data:                 data,
		PropertyHeaderLength: headerLength,
		Address:              addr,
		DataAddress:          dataAddress,
	}, nil
}

// GetProperty returns o's property propertyId, or the property defaults
// table entry for it (DataAddress left at 0) if o does not define it.
func (o *Object) GetProperty(core *zcore.Core, propertyId uint8) (Property, error) {
	ptr, err := propertyTableStart(core, o)
	if err != nil {
		return Property{}, err
	}

	for {
		sizeByte, err := core.ReadByte(ptr)
		if err != nil {
			return Property{}, err
		}
		if sizeByte == 0 {
			break
		}

		property, err := PropertyAt(core, ptr)
		if err != nil {
			return Property{}, err
		}
		if property.Id == propertyId {
			return property, nil
		}
		if property.Id < propertyId {
			break // properties are stored in descending id order
		}

		ptr = property.DataAddress + uint32(property.Length)
	}

	defaultAddr := uint32(core.ObjectTableBase) + 2*uint32(propertyId-1)
	data, err := core.ReadSlice(defaultAddr, defaultAddr+2)
	if err != nil {
		return Property{}, err
	}
	return Property{Id: propertyId, Length: 2, Data: data}, nil
}

// SetProperty stores value into o's existing property propertyId. Per
// the standard, put_prop on a property the object does not define is a
// game error.
func (o *Object) SetProperty(core *zcore.Core, propertyId uint8, value uint16) error {
	ptr, err := propertyTableStart(core, o)
	if err != nil {
		return err
	}

	for {
		sizeByte, err := core.ReadByte(ptr)
		if err != nil {
			return err
		}
		if sizeByte == 0 {
			break
		}

		property, err := PropertyAt(core, ptr)
		if err != nil {
			return err
		}
		if property.Id == propertyId {
			switch property.Length {
			case 1:
				return core.WriteByte(property.DataAddress, uint8(value))
			case 2:
				return core.WriteWord(property.DataAddress, value)
			default:
				return zerrs.InvalidPropertyError{ObjectID: o.Id, PropertyID: propertyId, Reason: "put_prop requires length 1 or 2"}
			}
		}

		ptr = property.DataAddress + uint32(property.Length)
	}

	return zerrs.InvalidPropertyError{ObjectID: o.Id, PropertyID: propertyId, Reason: "not present on object"}
}

// GetPropertyAddr returns the address of propertyId's data, or 0 if o
// does not define it.
func (o *Object) GetPropertyAddr(core *zcore.Core, propertyId uint8) (uint32, error) {
	ptr, err := propertyTableStart(core, o)
	if err != nil {
		return 0, err
	}

	for {
		sizeByte, err := core.ReadByte(ptr)
		if err != nil {
			return 0, err
		}
		if sizeByte == 0 {
			return 0, nil
		}

		property, err := PropertyAt(core, ptr)
		if err != nil {
			return 0, err
		}
		if property.Id == propertyId {
			return property.DataAddress, nil
		}
		ptr = property.DataAddress + uint32(property.Length)
	}
}

// GetNextProperty implements get_next_prop: propertyId 0 means "first
// property", otherwise it returns the id of the property following
// propertyId, or 0 if propertyId was the last.
func (o *Object) GetNextProperty(core *zcore.Core, propertyId uint8) (uint8, error) {
	ptr, err := propertyTableStart(core, o)
	if err != nil {
		return 0, err
	}

	if propertyId == 0 {
		sizeByte, err := core.ReadByte(ptr)
		if err != nil {
			return 0, err
		}
		if sizeByte == 0 {
			return 0, nil
		}
		property, err := PropertyAt(core, ptr)
		if err != nil {
			return 0, err
		}
		return property.Id, nil
	}

	property, err := o.GetProperty(core, propertyId)
	if err != nil {
		return 0, err
	}
	if property.DataAddress == 0 {
		return 0, zerrs.InvalidPropertyError{ObjectID: o.Id, PropertyID: propertyId, Reason: "get_next_prop on property object does not have"}
	}

	nextSizeByte, err := core.ReadByte(property.DataAddress + uint32(property.Length))
	if err != nil {
		return 0, err
	}
	if nextSizeByte == 0 {
		return 0, nil
	}
	next, err := PropertyAt(core, property.DataAddress+uint32(property.Length))
	if err != nil {
		return 0, err
	}
	return next.Id, nil
}
