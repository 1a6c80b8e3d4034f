package portal

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/azzurro/pkg/common"
)

// Configured sets up the portal based on flags. The real ZCS portal is used by
// default; the "mock" provider simulates inverters for local development.
func Configured() Portal {
	provider := lflag.String("portal-provider", "zcs", "Portal provider to use (available: zcs, mock)")

	var p struct{ Portal }

	z := configuredZCS()

	lflag.Do(func() {
		switch *provider {
		case "zcs":
			if err := z.Validate(); err != nil {
				panic(fmt.Sprintf("zcs portal validation failed: %v", err))
			}
			p.Portal = z
		case "mock":
			p.Portal = NewMock()
		default:
			panic(fmt.Sprintf("unknown portal provider: %s", *provider))
		}
	})

	return &p
}

// configuredZCS registers the flags for the ZCS portal and returns the
// instance, which is filled in once flags are parsed.
func configuredZCS() *ZCS {
	clientCode := lflag.String("zcs-client-code", "", "Client code of the ZCS Azzurro portal account")
	authKey := lflag.String("zcs-auth-key", "", "Authorization key of the ZCS Azzurro portal account")
	endpoint := lflag.String("zcs-endpoint", DefaultEndpoint, "ZCS Azzurro portal endpoint")
	timeout := lflag.Duration("portal-timeout", DefaultTimeout, "Timeout for a single portal request")
	historic := lflag.Bool("zcs-historic", true, "Also request the last hours of historic data on every poll")

	z := newZCS("", "", DefaultTimeout)

	lflag.Do(func() {
		z.clientCode = *clientCode
		z.authKey = *authKey
		z.endpoint = *endpoint
		z.includeHistoric = *historic
		z.client = common.HTTPClient(*timeout)
	})

	return z
}

// DefaultTimeout is the default timeout of a single portal request.
const DefaultTimeout = 30 * time.Second
