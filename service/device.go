package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apiaryhq/hive/core"
	"github.com/apiaryhq/hive/ports"
	"github.com/apiaryhq/hive/srp"
)

// ConfirmDevice registers the device identity issued at login as a trusted
// device, so later logins can take the device round instead of MFA. The
// returned descriptor carries the generated device password; it is shown
// exactly once and the caller is responsible for storing it.
func (s *AuthService) ConfirmDevice(ctx context.Context, accessToken, deviceName string, device core.UntrustedDevice) (*core.TrustedDevice, error) {
	verifier, err := srp.NewDeviceVerifier(device.DeviceGroupKey, device.DeviceKey)
	if err != nil {
		return nil, fmt.Errorf("generating device verifier: %w", err)
	}

	confirmationNeeded, err := s.provider.ConfirmDevice(ctx, accessToken, device.DeviceKey, deviceName, ports.DeviceSecretVerifier{
		PasswordVerifier: verifier.PasswordVerifier,
		Salt:             verifier.Salt,
	})
	if err != nil {
		return nil, passthrough(err)
	}

	// Some pools leave freshly confirmed devices in an unremembered state
	// until explicitly flagged; without the flag the device round is
	// never offered.
	if confirmationNeeded {
		if err := s.provider.MarkDeviceRemembered(ctx, accessToken, device.DeviceKey); err != nil {
			return nil, passthrough(err)
		}
	}

	s.logger.Info("device confirmed as trusted", slog.String("device_key", device.DeviceKey))

	return &core.TrustedDevice{
		DeviceKey:      device.DeviceKey,
		DeviceGroupKey: device.DeviceGroupKey,
		DevicePassword: verifier.Password,
	}, nil
}
