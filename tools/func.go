package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// Handler executes a declaratively described tool.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type funcTool struct {
	name   string
	desc   string
	params []Param
	schema ParameterSchema

	fn       reflect.Value
	argsType reflect.Type
	argsPtr  bool
	withCtx  bool
	withErr  bool
	noResult bool

	handler Handler
}

// NewFunc builds a tool from a Go function. fn must look like
//
//	func([ctx context.Context,] [args T]) (R, error)
//
// where T is a struct (or pointer to one) whose exported fields are the
// parameters, and the result may be R, error, or (R, error). Field names come
// from the json tag, descriptions from a desc tag or the doc's Args section.
// A field is required unless it carries a default tag.
func NewFunc(name, doc string, fn any) (Tool, error) {
	if name == "" {
		return nil, errors.New("tool name is empty")
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("tool %s: expected a function, got %T", name, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("tool %s: variadic functions are not supported", name)
	}

	ft := &funcTool{name: name, desc: describe(name, doc), fn: v}

	in := 0
	if in < t.NumIn() && t.In(in) == contextType {
		ft.withCtx = true
		in++
	}
	if in < t.NumIn() {
		at := t.In(in)
		if at.Kind() == reflect.Ptr {
			ft.argsPtr = true
			at = at.Elem()
		}
		if at.Kind() != reflect.Struct {
			return nil, fmt.Errorf("tool %s: arguments must be a struct, got %s", name, t.In(in))
		}
		ft.argsType = at
		in++
	}
	if in != t.NumIn() {
		return nil, fmt.Errorf("tool %s: unexpected parameter %s", name, t.In(in))
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			ft.withErr = true
			ft.noResult = true
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("tool %s: second result must be error", name)
		}
		ft.withErr = true
	default:
		return nil, fmt.Errorf("tool %s: expected (result[, error]), got %d results", name, t.NumOut())
	}

	if ft.argsType != nil {
		ft.params = structParams(ft.argsType, parseParamDocs(doc))
	}
	ft.schema = buildSchema(ft.params)
	return ft, nil
}

// MustFunc is NewFunc that panics on an invalid function shape.
func MustFunc(name, doc string, fn any) Tool {
	t, err := NewFunc(name, doc, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// NewDynamic builds a tool from declarative parameter metadata. Parameter
// descriptions left empty are filled from the doc's Args section.
func NewDynamic(name, doc string, params []Param, handler Handler) Tool {
	docs := parseParamDocs(doc)
	ps := make([]Param, len(params))
	for i, p := range params {
		if p.Description == "" {
			p.Description = docs[p.Name]
		}
		if p.Type == "" {
			p.Type = TypeString
		}
		ps[i] = p
	}
	return &funcTool{
		name:    name,
		desc:    describe(name, doc),
		params:  ps,
		schema:  buildSchema(ps),
		handler: handler,
	}
}

func (t *funcTool) Name() string               { return t.name }
func (t *funcTool) Description() string        { return t.desc }
func (t *funcTool) Parameters() map[string]any { return t.schema.Map() }

// Params returns the parameter metadata in declaration order.
func (t *funcTool) Params() []Param { return append([]Param(nil), t.params...) }

// Schema returns the typed parameter schema.
func (t *funcTool) Schema() ParameterSchema { return t.schema }

func (t *funcTool) Execute(ctx context.Context, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.name, r)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	if t.handler != nil {
		return t.handler(ctx, t.withDefaults(args))
	}

	in := make([]reflect.Value, 0, 2)
	if t.withCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	if t.argsType != nil {
		av, err := t.decodeArgs(args)
		if err != nil {
			return nil, err
		}
		if t.argsPtr {
			in = append(in, av)
		} else {
			in = append(in, av.Elem())
		}
	}

	out := t.fn.Call(in)
	if t.withErr {
		if e, _ := out[len(out)-1].Interface().(error); e != nil {
			return nil, e
		}
	}
	if t.noResult {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func (t *funcTool) withDefaults(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(t.params))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range t.params {
		if _, ok := out[p.Name]; !ok && !p.Required && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// decodeArgs fills a new args struct: tag defaults first, then the supplied
// values through a JSON round trip.
func (t *funcTool) decodeArgs(args map[string]any) (reflect.Value, error) {
	av := reflect.New(t.argsType)
	for i := 0; i < t.argsType.NumField(); i++ {
		f := t.argsType.Field(i)
		def, ok := f.Tag.Lookup("default")
		if !ok || !f.IsExported() {
			continue
		}
		if err := setDefault(av.Elem().Field(i), def); err != nil {
			return reflect.Value{}, fmt.Errorf("tool %s: default for %s: %w", t.name, f.Name, err)
		}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("tool %s: encode arguments: %w", t.name, err)
	}
	if err := json.Unmarshal(raw, av.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("tool %s: invalid arguments: %w", t.name, err)
	}
	return av, nil
}

func setDefault(field reflect.Value, def string) error {
	target := field
	if target.Kind() == reflect.Ptr {
		target.Set(reflect.New(target.Type().Elem()))
		target = target.Elem()
	}
	if target.Kind() == reflect.String {
		target.SetString(def)
		return nil
	}
	return json.Unmarshal([]byte(def), target.Addr().Interface())
}

func structParams(st reflect.Type, docs map[string]string) []Param {
	params := make([]Param, 0, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		p := Param{
			Name:        name,
			Type:        jsonType(f.Type),
			Description: f.Tag.Get("desc"),
			Required:    true,
		}
		if p.Description == "" {
			p.Description = docs[name]
		}
		if def, ok := f.Tag.Lookup("default"); ok {
			p.Required = false
			p.Default = def
		}
		params = append(params, p)
	}
	return params
}

// jsonType maps a Go type onto a primitive schema type; unmapped types are
// reported as strings.
func jsonType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return TypeString
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	case reflect.Map, reflect.Struct:
		return TypeObject
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeString
		}
		return TypeArray
	default:
		return TypeString
	}
}
