package monitoring

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tidwall/sjson"
)

// DefaultPrefix starts every module name.
const DefaultPrefix = "ceph_backup"

// ModuleType is a Pandora FMS module type.
type ModuleType string

const (
	GenericData       ModuleType = "generic_data"
	GenericDataInc    ModuleType = "generic_data_inc"
	GenericDataIncAbs ModuleType = "generic_data_inc_abs"
	GenericProc       ModuleType = "generic_proc"
	GenericDataString ModuleType = "generic_data_string"
	AsyncData         ModuleType = "async_data"
	AsyncString       ModuleType = "async_string"
	AsyncProc         ModuleType = "async_proc"
)

var moduleTypes = map[ModuleType]struct{}{
	GenericData: {}, GenericDataInc: {}, GenericDataIncAbs: {}, GenericProc: {},
	GenericDataString: {}, AsyncData: {}, AsyncString: {}, AsyncProc: {},
}

var ErrUnknownModuleType = errors.New("unknown module type")

// Module is one monitoring value reported to the agent.
type Module struct {
	Name        string
	Type        ModuleType
	Data        string
	Description string
}

// NewModule validates typ and returns the module.
func NewModule(name string, typ ModuleType, description, data string) (Module, error) {
	if _, ok := moduleTypes[typ]; !ok {
		return Module{}, fmt.Errorf("%w: %q", ErrUnknownModuleType, typ)
	}
	return Module{Name: name, Type: typ, Data: data, Description: description}, nil
}

// Modules emits <prefix>_<image>_status and <prefix>_<image>_elapsed_time for
// every result.
func Modules(results []Result, prefix string) ([]Module, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	out := make([]Module, 0, 2*len(results))
	for _, r := range results {
		status, err := NewModule(fmt.Sprintf("%s_%s_status", prefix, r.Image), GenericData,
			"Backup status", strconv.Itoa(r.Status))
		if err != nil {
			return nil, err
		}
		// A run that never finished reports a plain 0.
		secs := "0"
		if r.Status == 1 {
			secs = strconv.FormatFloat(r.Elapsed, 'f', 1, 64)
		}
		elapsed, err := NewModule(fmt.Sprintf("%s_%s_elapsed_time", prefix, r.Image), GenericData,
			"Time spent on the backup", secs)
		if err != nil {
			return nil, err
		}
		out = append(out, status, elapsed)
	}
	return out, nil
}

type cdata struct {
	Value string `xml:",cdata"`
}

type xmlModule struct {
	XMLName     xml.Name `xml:"module"`
	Name        cdata    `xml:"name"`
	Type        cdata    `xml:"type"`
	Data        cdata    `xml:"data"`
	Description string   `xml:"description"`
}

// WriteXML renders modules as agent <module> blocks.
func WriteXML(w io.Writer, mods []Module) error {
	for _, m := range mods {
		b, err := xml.MarshalIndent(xmlModule{
			Name:        cdata{m.Name},
			Type:        cdata{string(m.Type)},
			Data:        cdata{m.Data},
			Description: m.Description,
		}, "", "\t")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON renders modules as a JSON array of {name,type,data,description}.
func WriteJSON(w io.Writer, mods []Module) error {
	doc := `[]`
	for _, m := range mods {
		obj := `{}`
		var err error
		for _, kv := range [][2]string{
			{"name", m.Name},
			{"type", string(m.Type)},
			{"data", m.Data},
			{"description", m.Description},
		} {
			if obj, err = sjson.Set(obj, kv[0], kv[1]); err != nil {
				return err
			}
		}
		if doc, err = sjson.SetRaw(doc, "-1", obj); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, doc)
	return err
}
