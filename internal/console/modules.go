package console

import (
	"time"

	"github.com/joeycumines/go-tickloop/loop"
)

type testModule struct {
	c    *Console
	m    *loop.Module
	name string
}

func (x *testModule) bind(m *loop.Module) { x.m = m }
func (x *testModule) OnStart()            { x.c.timed(x.m, "Starting", x.name) }
func (x *testModule) OnEnable()           { x.c.timed(x.m, "Enabling", x.name) }
func (x *testModule) OnDisable()          { x.c.timed(x.m, "Disabling", x.name) }
func (x *testModule) OnStop()             { x.c.timed(x.m, "Ending", x.name) }

func (x *testModule) OnUpdate() error {
	x.c.timed(x.m, "Updating", x.name)
	return nil
}

// promptModule pauses the loop each tick, until the console reads the next
// command. It never pauses while a command is executing, since the command
// may need to acquire the module.
type promptModule struct {
	c    *Console
	m    *loop.Module
	name string
}

func (x *promptModule) bind(m *loop.Module) { x.m = m }
func (x *promptModule) OnStart()            {}
func (x *promptModule) OnEnable()           {}
func (x *promptModule) OnDisable()          {}
func (x *promptModule) OnStop()             {}

func (x *promptModule) OnUpdate() error {
	x.c.timed(x.m, "Prompt", x.name)
	seen := x.c.commands.Load()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for !x.c.busy.Load() && x.c.commands.Load() == seen {
		select {
		case <-x.c.quit:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
