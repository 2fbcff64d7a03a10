package gamepad

// ObjectProperties is the per-object calibration consumed by the scaler.
// Deadzone and saturation are on a 0..10000 basis-point scale.
type ObjectProperties struct {
	LogicalMin  int32
	LogicalMax  int32
	RangeMin    int32
	RangeMax    int32
	Deadzone    int32
	Saturation  int32
	Granularity int32
}

// defaultAxisProperties is the fixed calibration applied to every analog axis
// at device creation: full signed 16-bit logical domain mapped onto 0..65535,
// no dead zone, 100% saturation.
func defaultAxisProperties() ObjectProperties {
	return ObjectProperties{
		LogicalMin:  -32768,
		LogicalMax:  32767,
		RangeMin:    0,
		RangeMax:    65535,
		Saturation:  10000,
		Granularity: 1,
	}
}

// PropertyTable stores calibration for an ordered object list and resolves
// object ids to their enumeration index.
type PropertyTable struct {
	objects []Object
	index   map[ObjectID]int
	props   []ObjectProperties
}

// NewPropertyTable builds a table for the given object list. Axes receive the
// default calibration; buttons and the hat have none.
func NewPropertyTable(objects []Object) *PropertyTable {
	t := &PropertyTable{
		objects: objects,
		index:   make(map[ObjectID]int, len(objects)),
		props:   make([]ObjectProperties, len(objects)),
	}
	for i, obj := range objects {
		t.index[obj.ID] = i
		if obj.ID.Kind == KindAxis {
			t.props[i] = defaultAxisProperties()
		}
	}
	return t
}

// IndexOf returns the enumeration index of id, or -1 if the active object
// list does not contain it.
func (t *PropertyTable) IndexOf(id ObjectID) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return -1
}

// Lookup returns the calibration for id, or nil if id is unknown.
func (t *PropertyTable) Lookup(id ObjectID) *ObjectProperties {
	i := t.IndexOf(id)
	if i < 0 {
		return nil
	}
	return &t.props[i]
}

// At returns the calibration at enumeration index i.
func (t *PropertyTable) At(i int) *ObjectProperties { return &t.props[i] }

// Objects returns the ordered object list backing the table.
func (t *PropertyTable) Objects() []Object { return t.objects }
