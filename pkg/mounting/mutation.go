package mounting

import "fmt"

// MutationKind identifies a tree-edit operation.
type MutationKind int

const (
	MutationCreate MutationKind = iota
	MutationDelete
	MutationInsert
	MutationRemove
	MutationUpdate
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationDelete:
		return "delete"
	case MutationInsert:
		return "insert"
	case MutationRemove:
		return "remove"
	case MutationUpdate:
		return "update"
	default:
		return fmt.Sprintf("mutation(%d)", int(k))
	}
}

// Mutation is one tree-edit operation. Which fields are meaningful depends
// on Kind:
//
//	Create: Tag, ComponentName, Props, optional State and Layout
//	Delete: Tag
//	Insert: ParentTag, Tag, Index
//	Remove: ParentTag, Tag, optional Index (-1 when unknown)
//	Update: Tag and any of Props, State, Layout
type Mutation struct {
	Kind          MutationKind
	Tag           int64
	ParentTag     int64
	Index         int
	ComponentName string
	Props         *Props
	State         *State
	Layout        *LayoutMetrics
}

// Batch is an ordered list of mutations applied in one render pass.
type Batch []Mutation

// Create returns a Create mutation.
func Create(tag int64, componentName string, props *Props) Mutation {
	return Mutation{Kind: MutationCreate, Tag: tag, ComponentName: componentName, Props: props}
}

// Delete returns a Delete mutation.
func Delete(tag int64) Mutation {
	return Mutation{Kind: MutationDelete, Tag: tag}
}

// Insert returns an Insert mutation placing child at index under parent.
func Insert(parentTag, childTag int64, index int) Mutation {
	return Mutation{Kind: MutationInsert, ParentTag: parentTag, Tag: childTag, Index: index}
}

// Remove returns a Remove mutation detaching child from parent.
func Remove(parentTag, childTag int64) Mutation {
	return Mutation{Kind: MutationRemove, ParentTag: parentTag, Tag: childTag, Index: -1}
}

// UpdateProps returns an Update mutation replacing the props snapshot.
func UpdateProps(tag int64, props *Props) Mutation {
	return Mutation{Kind: MutationUpdate, Tag: tag, Props: props}
}

// UpdateState returns an Update mutation replacing the state snapshot.
func UpdateState(tag int64, state *State) Mutation {
	return Mutation{Kind: MutationUpdate, Tag: tag, State: state}
}

// UpdateLayout returns an Update mutation carrying new layout metrics.
func UpdateLayout(tag int64, layout LayoutMetrics) Mutation {
	return Mutation{Kind: MutationUpdate, Tag: tag, Layout: &layout}
}

func (m Mutation) String() string {
	switch m.Kind {
	case MutationCreate:
		return fmt.Sprintf("Create(%d, %s)", m.Tag, m.ComponentName)
	case MutationDelete:
		return fmt.Sprintf("Delete(%d)", m.Tag)
	case MutationInsert:
		return fmt.Sprintf("Insert(%d, %d, %d)", m.ParentTag, m.Tag, m.Index)
	case MutationRemove:
		return fmt.Sprintf("Remove(%d, %d)", m.ParentTag, m.Tag)
	case MutationUpdate:
		return fmt.Sprintf("Update(%d)", m.Tag)
	default:
		return fmt.Sprintf("%s(%d)", m.Kind, m.Tag)
	}
}
