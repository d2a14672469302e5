package guard

// TrafficType marks an entry as system-inbound or outbound. Inbound entries
// additionally feed the global in-bound aggregate node.
type TrafficType int

const (
	Outbound TrafficType = iota
	Inbound
)

func (t TrafficType) String() string {
	if t == Inbound {
		return "in"
	}
	return "out"
}

// Resource identifies one protected call site.
type Resource struct {
	name        string
	trafficType TrafficType
}

func NewResource(name string, trafficType TrafficType) *Resource {
	return &Resource{name: name, trafficType: trafficType}
}

func (r *Resource) Name() string             { return r.name }
func (r *Resource) TrafficType() TrafficType { return r.trafficType }
