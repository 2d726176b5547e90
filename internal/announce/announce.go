// Package announce advertises the bridge API over mDNS. The bridge picks a
// free port on first run, so show-control consoles on the same network can
// browse for _rew-bridge._tcp instead of being told the port by hand.
package announce

import (
	"context"
	"fmt"

	"github.com/grandcat/zeroconf"

	"github.com/jensen-user/rew-bridge/internal/logging"
)

const serviceType = "_rew-bridge._tcp"

// Run registers the service and keeps it advertised until the context is
// canceled. Registration failure is returned, not fatal — the bridge works
// without discovery.
func Run(ctx context.Context, instance string, port int, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}

	txt := []string{"api=/api/spl", fmt.Sprintf("port=%d", port)}
	server, err := zeroconf.Register(instance, serviceType, "local.", port, txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	defer server.Shutdown()

	logger.Info("mdns advertisement up",
		logging.Field{Key: "instance", Value: instance},
		logging.Field{Key: "service", Value: serviceType},
		logging.Field{Key: "port", Value: port})

	<-ctx.Done()
	return nil
}
