package mounting

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

// yamlMutation is one entry of a YAML batch. Exactly one field is set.
type yamlMutation struct {
	Create *struct {
		Tag       int64          `yaml:"tag"`
		Component string         `yaml:"component"`
		Props     yaml.Node      `yaml:"props"`
		State     yaml.Node      `yaml:"state"`
		Layout    *LayoutMetrics `yaml:"layout"`
	} `yaml:"create"`
	Insert *struct {
		Parent int64 `yaml:"parent"`
		Child  int64 `yaml:"child"`
		Index  int   `yaml:"index"`
	} `yaml:"insert"`
	Remove *struct {
		Parent int64 `yaml:"parent"`
		Child  int64 `yaml:"child"`
	} `yaml:"remove"`
	Update *struct {
		Tag    int64          `yaml:"tag"`
		Props  yaml.Node      `yaml:"props"`
		State  yaml.Node      `yaml:"state"`
		Layout *LayoutMetrics `yaml:"layout"`
	} `yaml:"update"`
	Delete *struct {
		Tag int64 `yaml:"tag"`
	} `yaml:"delete"`
}

// DecodeBatchYAML parses a mutation batch written as a YAML list:
//
//	- create: {tag: 2, component: View, props: {nativeID: box}}
//	- insert: {parent: 1, child: 2, index: 0}
//	- update: {tag: 2, layout: {x: 0, y: 0, width: 100, height: 40}}
//	- remove: {parent: 1, child: 2}
//	- delete: {tag: 2}
//
// Prop maps keep their document order.
func DecodeBatchYAML(data []byte) (Batch, error) {
	var entries []yamlMutation
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	batch := make(Batch, 0, len(entries))
	for i, e := range entries {
		m, err := e.mutation()
		if err != nil {
			return nil, fmt.Errorf("decode batch: entry %d: %w", i, err)
		}
		batch = append(batch, m)
	}
	return batch, nil
}

func (e yamlMutation) mutation() (Mutation, error) {
	switch {
	case e.Create != nil:
		c := e.Create
		if c.Component == "" {
			return Mutation{}, fmt.Errorf("create %d: missing component", c.Tag)
		}
		m := Create(c.Tag, c.Component, nil)
		props, err := yamlProps(&c.Props)
		if err != nil {
			return Mutation{}, err
		}
		m.Props = props
		if m.State, err = yamlState(&c.State); err != nil {
			return Mutation{}, err
		}
		m.Layout = c.Layout
		return m, nil
	case e.Insert != nil:
		return Insert(e.Insert.Parent, e.Insert.Child, e.Insert.Index), nil
	case e.Remove != nil:
		return Remove(e.Remove.Parent, e.Remove.Child), nil
	case e.Update != nil:
		u := e.Update
		m := Mutation{Kind: MutationUpdate, Tag: u.Tag, Layout: u.Layout}
		var err error
		if !u.Props.IsZero() {
			if m.Props, err = yamlProps(&u.Props); err != nil {
				return Mutation{}, err
			}
		}
		if m.State, err = yamlState(&u.State); err != nil {
			return Mutation{}, err
		}
		return m, nil
	case e.Delete != nil:
		return Delete(e.Delete.Tag), nil
	}
	return Mutation{}, fmt.Errorf("no mutation kind set")
}

func yamlProps(n *yaml.Node) (*Props, error) {
	if n.IsZero() {
		return NewProps(nil), nil
	}
	v, err := YAMLValue(n)
	if err != nil {
		return nil, err
	}
	obj := dynamic.AsObject(v)
	if obj == nil {
		return nil, fmt.Errorf("props must be a mapping, got %s", dynamic.TypeName(v))
	}
	return &Props{values: obj}, nil
}

func yamlState(n *yaml.Node) (*State, error) {
	if n.IsZero() {
		return nil, nil
	}
	v, err := YAMLValue(n)
	if err != nil {
		return nil, err
	}
	return &State{value: v}, nil
}

// YAMLValue converts a YAML node into a dynamic value, keeping mapping order.
func YAMLValue(n *yaml.Node) (dynamic.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return YAMLValue(n.Content[0])
	case yaml.AliasNode:
		return YAMLValue(n.Alias)
	case yaml.MappingNode:
		obj := dynamic.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := YAMLValue(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			obj.Set(key, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make([]dynamic.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := YAMLValue(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return nil, fmt.Errorf("unsupported YAML node kind %d", n.Kind)
}

func yamlScalar(n *yaml.Node) (dynamic.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return i, nil
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			var v float64
			if derr := n.Decode(&v); derr != nil {
				return nil, derr
			}
			return v, nil
		}
		return f, nil
	default:
		return n.Value, nil
	}
}
