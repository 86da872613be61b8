// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package converter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"reflect"

	"rivaas.dev/rest/response"
)

// MediaTypeXML is the XML media type.
const MediaTypeXML = "application/xml"

// Node is the generic XML tree produced when no target type is given.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// XML converts "application/xml", "text/xml" and "+xml" media types.
//
// Slices are written inside a root element named after the slice type, or
// after the element type with a "List" suffix for unnamed slices:
//
//	[]Order   -> <OrderList><Order>...</Order></OrderList>
//	OrderPage -> <OrderPage><Order>...</Order></OrderPage>
//
// Per-type metadata is computed once and cached.
type XML struct {
	settings Settings
	types    *typeCache
}

// NewXML creates an XML converter. Parsing is always strict.
func NewXML(opts ...Option) *XML {
	return &XML{
		settings: NewSettings(opts...),
		types:    newTypeCache(buildXMLTypeInfo),
	}
}

// Supports implements [Converter].
func (c *XML) Supports(mediaType string) bool {
	return Matches(mediaType, MediaTypeXML, "text/xml", "+xml")
}

// Read implements [Converter].
func (c *XML) Read(r *http.Request, target reflect.Type) (any, error) {
	if err := CheckCharset(r.Header.Get(response.HeaderContentType)); err != nil {
		return nil, err
	}
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))

	if target == nil {
		node := &Node{}
		if err := dec.Decode(node); err != nil {
			return nil, DecodeError(MediaTypeXML, eofAsUnexpected(err))
		}
		return node, nil
	}

	base := target
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if info := c.types.get(base); info.slice {
		s, err := decodeXMLSlice(dec, base)
		if err != nil {
			return nil, DecodeError(MediaTypeXML, err)
		}
		if target.Kind() == reflect.Pointer {
			p := reflect.New(base)
			p.Elem().Set(s)
			return p.Interface(), nil
		}
		return s.Interface(), nil
	}

	dst, result := Allocate(target)
	if err := dec.Decode(dst); err != nil {
		return nil, DecodeError(MediaTypeXML, eofAsUnexpected(err))
	}
	return result(), nil
}

// Write implements [Converter].
func (c *XML) Write(v any, mediaType string) (*response.Response, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	if v != nil {
		t := reflect.TypeOf(v)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if info := c.types.get(t); info.slice {
			start := xml.StartElement{Name: xml.Name{Local: info.root}}
			if err := enc.EncodeToken(start); err != nil {
				return nil, err
			}
			if err := enc.Encode(v); err != nil {
				return nil, err
			}
			if err := enc.EncodeToken(start.End()); err != nil {
				return nil, err
			}
		} else if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return Encoded(mediaType, buf.Bytes()), nil
}

// decodeXMLSlice reads the children of the document root into a slice of
// sliceType.
func decodeXMLSlice(dec *xml.Decoder, sliceType reflect.Type) (reflect.Value, error) {
	elemType := sliceType.Elem()
	s := reflect.MakeSlice(sliceType, 0, 0)
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return reflect.Value{}, eofAsUnexpected(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				depth++
				continue
			}
			var elem reflect.Value
			if elemType.Kind() == reflect.Pointer {
				elem = reflect.New(elemType.Elem())
			} else {
				elem = reflect.New(elemType)
			}
			if err := dec.DecodeElement(elem.Interface(), &t); err != nil {
				return reflect.Value{}, err
			}
			if elemType.Kind() != reflect.Pointer {
				elem = elem.Elem()
			}
			s = reflect.Append(s, elem)
		case xml.EndElement:
			return s, nil
		}
	}
}

func eofAsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// xmlTypeInfo is the cached XML metadata of one type.
type xmlTypeInfo struct {
	slice bool
	root  string
}

func buildXMLTypeInfo(t reflect.Type) *xmlTypeInfo {
	if t.Kind() != reflect.Slice || t.Elem().Kind() == reflect.Uint8 {
		return &xmlTypeInfo{}
	}
	if t.Name() != "" {
		return &xmlTypeInfo{slice: true, root: t.Name()}
	}
	elem := t.Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Name() == "" {
		return &xmlTypeInfo{slice: true, root: "items"}
	}
	return &xmlTypeInfo{slice: true, root: elem.Name() + "List"}
}
