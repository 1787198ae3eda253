package console

import (
	"fmt"
	"net"

	"github.com/nerrad567/scanctl/internal/dispatch"
	"github.com/nerrad567/scanctl/internal/macro"
	"github.com/nerrad567/scanctl/internal/protocol"
	"github.com/nerrad567/scanctl/internal/registry"
)

// BuildRequest converts cfg into a dispatch request addressed to c.
//
// Groups are taken in sequence order, then catalog order for any enabled
// group the sequence omits. Disabled groups are skipped. An empty option
// selects the group's first option. Groups whose repetitions are not
// operator-tunable always send one frame. A zero delay means the group
// default.
//
// Returns:
//   - ErrNothingToSend if no group is enabled
//   - ErrNoInterface / ErrNoSource if the link cannot be determined
//   - protocol.ErrUnknownGroup / protocol.ErrUnknownOption for catalog misses
func (s *Service) BuildRequest(c registry.Controller, cfg macro.Config) (dispatch.Request, error) {
	dst, err := protocol.ParseHardwareAddr(c.Address)
	if err != nil {
		return dispatch.Request{}, err
	}

	iface := c.Interface
	if iface == "" {
		iface = s.iface
	}
	if iface == "" {
		return dispatch.Request{}, fmt.Errorf("controller %s: %w", c.Address, ErrNoInterface)
	}

	src, err := s.sourceFor(c, iface)
	if err != nil {
		return dispatch.Request{}, err
	}

	req := dispatch.Request{Label: controllerLabel(c)}
	ordered := macro.Capture(cfg.State, cfg.Sequence)
	for _, name := range macro.Enabled(ordered) {
		entry, err := buildEntry(name, ordered.State[name])
		if err != nil {
			return dispatch.Request{}, err
		}
		entry.Source = src
		entry.Destination = dst
		entry.Interface = iface
		req.Entries = append(req.Entries, entry)
	}

	if len(req.Entries) == 0 {
		return dispatch.Request{}, fmt.Errorf("controller %s: %w", c.Address, ErrNothingToSend)
	}
	return req, nil
}

func buildEntry(group string, st registry.CommandState) (dispatch.Entry, error) {
	g, err := protocol.LookupGroup(group)
	if err != nil {
		return dispatch.Entry{}, err
	}

	option := st.Option
	if option == "" {
		option = g.Options[0].Label
	}
	cmd, err := g.Resolve(option)
	if err != nil {
		return dispatch.Entry{}, err
	}

	reps := 1
	if g.Repeatable {
		reps = st.Repetitions
		if reps < 1 {
			reps = g.DefaultRepetitions
		}
	}

	delay := st.Delay
	if delay == 0 {
		delay = g.DefaultDelay
	}

	return dispatch.Entry{
		Command:     cmd.Code,
		CommandName: cmd.Name,
		Repetitions: reps,
		Delay:       delay,
	}, nil
}

// sourceFor returns the controller's configured source address, or the
// address of the adapter it is reached through.
func (s *Service) sourceFor(c registry.Controller, iface string) (net.HardwareAddr, error) {
	if c.Source != "" {
		return protocol.ParseHardwareAddr(c.Source)
	}
	if s.resolveSource == nil {
		return nil, fmt.Errorf("controller %s: %w", c.Address, ErrNoSource)
	}
	src, err := s.resolveSource(iface)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w: %w", c.Address, ErrNoSource, err)
	}
	return src, nil
}

func controllerLabel(c registry.Controller) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Address
}
