package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ItemContents is the plaintext body of an item.
type ItemContents struct {
	Metadata    ItemMetadata
	Content     Content
	ExtraFields []ExtraField

	// contentRaw holds a content message whose case this version does not know.
	contentRaw []byte
	// contentUnknown holds unknown fields beside a known content case.
	contentUnknown []byte
	unknown        []byte
}

type ItemMetadata struct {
	Name     string
	Note     string
	ItemUUID string

	unknown []byte
}

// Content is one of Note, Login or Alias.
type Content interface {
	Type() string
	field() protowire.Number
	encode() []byte
}

type Note struct {
	unknown []byte
}

type Login struct {
	Username string
	Password string
	URLs     []string
	TOTPURI  string

	unknown []byte
}

type Alias struct {
	unknown []byte
}

func (Note) Type() string  { return "note" }
func (Login) Type() string { return "login" }
func (Alias) Type() string { return "alias" }

func (Note) field() protowire.Number  { return contentNoteField }
func (Login) field() protowire.Number { return contentLoginField }
func (Alias) field() protowire.Number { return contentAliasField }

func (n Note) encode() []byte  { return append([]byte(nil), n.unknown...) }
func (a Alias) encode() []byte { return append([]byte(nil), a.unknown...) }

func (l Login) encode() []byte {
	var b []byte
	b = appendString(b, loginUsernameField, l.Username)
	b = appendString(b, loginPasswordField, l.Password)
	for _, u := range l.URLs {
		b = protowire.AppendTag(b, loginURLsField, protowire.BytesType)
		b = protowire.AppendString(b, u)
	}
	b = appendString(b, loginTOTPField, l.TOTPURI)
	return append(b, l.unknown...)
}

// ExtraField is a user-defined field. Hidden values are masked by the UI.
type ExtraField struct {
	Name   string
	Value  string
	Hidden bool

	valueUnknown []byte
	unknown      []byte
}

const (
	itemMetadataField = 1
	itemContentField  = 2
	itemExtraField    = 3

	metadataNameField = 1
	metadataNoteField = 2
	metadataUUIDField = 3

	contentNoteField  = 2
	contentLoginField = 3
	contentAliasField = 4

	loginUsernameField = 1
	loginPasswordField = 2
	loginURLsField     = 3
	loginTOTPField     = 4

	extraNameField   = 1
	extraTextField   = 2
	extraHiddenField = 3

	extraContentField = 1
)

// EncodeItemContents serializes c. Equal values always produce equal bytes.
func EncodeItemContents(c ItemContents) []byte {
	b := header()

	var md []byte
	md = appendString(md, metadataNameField, c.Metadata.Name)
	md = appendString(md, metadataNoteField, c.Metadata.Note)
	md = appendString(md, metadataUUIDField, c.Metadata.ItemUUID)
	md = append(md, c.Metadata.unknown...)
	b = appendMessage(b, itemMetadataField, md)

	if c.Content != nil {
		content := appendMessage(nil, c.Content.field(), c.Content.encode())
		content = append(content, c.contentUnknown...)
		b = appendMessage(b, itemContentField, content)
	} else if c.contentRaw != nil {
		b = appendMessage(b, itemContentField, c.contentRaw)
	}

	for _, ef := range c.ExtraFields {
		var e []byte
		e = appendString(e, extraNameField, ef.Name)
		value := appendString(nil, extraContentField, ef.Value)
		value = append(value, ef.valueUnknown...)
		if ef.Hidden {
			e = appendMessage(e, extraHiddenField, value)
		} else {
			e = appendMessage(e, extraTextField, value)
		}
		e = append(e, ef.unknown...)
		b = appendMessage(b, itemExtraField, e)
	}

	return append(b, c.unknown...)
}

// DecodeItemContents parses the output of EncodeItemContents, keeping unknown fields.
func DecodeItemContents(data []byte) (ItemContents, error) {
	body, err := stripHeader(data)
	if err != nil {
		return ItemContents{}, err
	}

	var c ItemContents
	c.unknown, err = walk(body, func(f field) (bool, error) {
		switch f.num {
		case itemMetadataField:
			md, err := decodeItemMetadata(f)
			c.Metadata = md
			return true, err
		case itemContentField:
			content, unknown, err := decodeContent(f)
			c.Content = content
			if err == nil && content == nil {
				c.contentRaw = append([]byte{}, f.bytes...)
			} else {
				c.contentUnknown = unknown
			}
			return true, err
		case itemExtraField:
			ef, err := decodeExtraField(f)
			c.ExtraFields = append(c.ExtraFields, ef)
			return true, err
		default:
			return false, nil
		}
	})
	if err != nil {
		return ItemContents{}, err
	}
	return c, nil
}

func decodeItemMetadata(f field) (ItemMetadata, error) {
	msg, err := f.message()
	if err != nil {
		return ItemMetadata{}, err
	}

	var md ItemMetadata
	md.unknown, err = walk(msg, func(f field) (bool, error) {
		var err error
		switch f.num {
		case metadataNameField:
			md.Name, err = f.str()
		case metadataNoteField:
			md.Note, err = f.str()
		case metadataUUIDField:
			md.ItemUUID, err = f.str()
		default:
			return false, nil
		}
		return true, err
	})
	return md, err
}

func decodeContent(f field) (Content, []byte, error) {
	msg, err := f.message()
	if err != nil {
		return nil, nil, err
	}

	var content Content
	// An unknown case decodes to nil content rather than failing, so newer
	// item types stay readable as metadata.
	unknown, err := walk(msg, func(f field) (bool, error) {
		switch f.num {
		case contentNoteField, contentAliasField, contentLoginField:
		default:
			return false, nil
		}
		body, err := f.message()
		if err != nil {
			return false, err
		}
		switch f.num {
		case contentNoteField:
			content = Note{unknown: copyUnknown(body)}
		case contentAliasField:
			content = Alias{unknown: copyUnknown(body)}
		case contentLoginField:
			login, err := decodeLogin(body)
			if err != nil {
				return false, err
			}
			content = login
		}
		return true, nil
	})
	return content, unknown, err
}

func decodeLogin(msg []byte) (Login, error) {
	var l Login
	var err error
	l.unknown, err = walk(msg, func(f field) (bool, error) {
		var err error
		switch f.num {
		case loginUsernameField:
			l.Username, err = f.str()
		case loginPasswordField:
			l.Password, err = f.str()
		case loginURLsField:
			var u string
			u, err = f.str()
			l.URLs = append(l.URLs, u)
		case loginTOTPField:
			l.TOTPURI, err = f.str()
		default:
			return false, nil
		}
		return true, err
	})
	return l, err
}

func decodeExtraField(f field) (ExtraField, error) {
	msg, err := f.message()
	if err != nil {
		return ExtraField{}, err
	}

	var ef ExtraField
	ef.unknown, err = walk(msg, func(f field) (bool, error) {
		switch f.num {
		case extraNameField:
			name, err := f.str()
			ef.Name = name
			return true, err
		case extraTextField, extraHiddenField:
			body, err := f.message()
			if err != nil {
				return false, err
			}
			ef.Hidden = f.num == extraHiddenField
			ef.valueUnknown, err = walk(body, func(f field) (bool, error) {
				if f.num != extraContentField {
					return false, nil
				}
				value, err := f.str()
				ef.Value = value
				return true, err
			})
			return true, err
		default:
			return false, nil
		}
	})
	if err != nil {
		return ExtraField{}, fmt.Errorf("extra field: %w", err)
	}
	return ef, nil
}

func copyUnknown(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
