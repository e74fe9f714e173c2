package platform

import (
	"go.uber.org/fx"

	"github.com/clinicore/rtc-service/internal/service"
)

var Module = fx.Module(
	"platform_client",

	fx.Provide(
		New,
		func(c *Client) service.Identity { return c },
		func(c *Client) service.Directory { return c },
		func(c *Client) service.ChannelDeliverer { return c },
	),
)
