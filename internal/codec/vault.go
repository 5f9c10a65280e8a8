package codec

// VaultMetadata is the plaintext body of a vault share.
type VaultMetadata struct {
	Name        string
	Description string
	Display     *VaultDisplay

	unknown []byte
}

type VaultDisplay struct {
	Color int32
	Icon  int32

	unknown []byte
}

const (
	vaultNameField        = 1
	vaultDescriptionField = 2
	vaultDisplayField     = 3

	displayColorField = 1
	displayIconField  = 2
)

// EncodeVaultMetadata serializes m. Equal values always produce equal bytes.
func EncodeVaultMetadata(m VaultMetadata) []byte {
	b := header()
	b = appendString(b, vaultNameField, m.Name)
	b = appendString(b, vaultDescriptionField, m.Description)
	if m.Display != nil {
		var d []byte
		d = appendInt32(d, displayColorField, m.Display.Color)
		d = appendInt32(d, displayIconField, m.Display.Icon)
		d = append(d, m.Display.unknown...)
		b = appendMessage(b, vaultDisplayField, d)
	}
	return append(b, m.unknown...)
}

// DecodeVaultMetadata parses the output of EncodeVaultMetadata, keeping unknown fields.
func DecodeVaultMetadata(data []byte) (VaultMetadata, error) {
	body, err := stripHeader(data)
	if err != nil {
		return VaultMetadata{}, err
	}

	var m VaultMetadata
	m.unknown, err = walk(body, func(f field) (bool, error) {
		var err error
		switch f.num {
		case vaultNameField:
			m.Name, err = f.str()
		case vaultDescriptionField:
			m.Description, err = f.str()
		case vaultDisplayField:
			m.Display, err = decodeDisplay(f)
		default:
			return false, nil
		}
		return true, err
	})
	if err != nil {
		return VaultMetadata{}, err
	}
	return m, nil
}

func decodeDisplay(f field) (*VaultDisplay, error) {
	msg, err := f.message()
	if err != nil {
		return nil, err
	}

	d := &VaultDisplay{}
	d.unknown, err = walk(msg, func(f field) (bool, error) {
		var err error
		switch f.num {
		case displayColorField:
			d.Color, err = f.int32()
		case displayIconField:
			d.Icon, err = f.int32()
		default:
			return false, nil
		}
		return true, err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
