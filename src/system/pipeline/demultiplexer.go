package pipeline

// Demultiplexer turns composite requests into the concrete units the
// planner works on: all-instances targets are expanded against what the
// live containers actually hold, and a composite map can be split into
// independently schedulable singleton requests.
type Demultiplexer struct {
}

func NewDemultiplexer() *Demultiplexer {
	return &Demultiplexer{}
}

// Expand replaces every all-instances target with the concrete matching
// targets enumerated from the corresponding container. A wildcard nothing
// matches yet is kept as is: the pipe producing that kind may still have
// to run and produce all instances.
func (d *Demultiplexer) Expand(request ContainerToTargetsMap, set *ContainerSet) ContainerToTargetsMap {
	out := make(ContainerToTargetsMap)
	for _, containerName := range request.Names() {
		for _, requested := range request.Targets(containerName).Slice() {
			if !requested.IsAll() {
				out.Add(containerName, requested)
				continue
			}
			container, err := set.Get(containerName)
			if err != nil {
				out.Add(containerName, requested)
				continue
			}
			matched := false
			for _, present := range container.Enumerate().Slice() {
				if present.Matches(requested) {
					out.Add(containerName, present)
					matched = true
				}
			}
			if !matched {
				out.Add(containerName, requested)
			}
		}
	}
	return out
}

// Split breaks a composite request into one singleton map per
// (container, target) pair, in deterministic order.
func (d *Demultiplexer) Split(request ContainerToTargetsMap) []ContainerToTargetsMap {
	var out []ContainerToTargetsMap
	for _, containerName := range request.Names() {
		for _, target := range request.Targets(containerName).Slice() {
			single := make(ContainerToTargetsMap)
			single.Add(containerName, target)
			out = append(out, single)
		}
	}
	return out
}
