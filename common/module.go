package common

type Module string

const (
	ModuleDiscovery Module = "discovery"
)

func (m Module) String() string {
	return string(m)
}
