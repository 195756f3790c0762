package behavior

import (
	"github.com/joeycumines/go-tickloop/loop"
)

// Module returns a loop.Module hosting the container. The container starts
// and ends with the module, and each update of the module ticks the
// container with the loop's frozen time.
//
// The module is named "behavior" unless loop.WithName is given.
func (c *Container) Module(opts ...loop.ModuleOption) (*loop.Module, error) {
	h := &moduleHooks{c: c}
	m, err := loop.NewModule(h, opts...)
	if err != nil {
		return nil, err
	}
	h.m = m
	return m, nil
}

type moduleHooks struct {
	c *Container
	m *loop.Module
}

func (x *moduleHooks) Name() string { return "behavior" }
func (x *moduleHooks) OnStart()     { x.c.Start() }
func (x *moduleHooks) OnEnable()    {}
func (x *moduleHooks) OnDisable()   {}
func (x *moduleHooks) OnStop()      { x.c.End() }

func (x *moduleHooks) OnUpdate() error {
	x.c.Tick(x.m.Time(), x.m.TimeDiff())
	return nil
}
