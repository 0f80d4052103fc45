package auth

import (
	"fmt"
	"net/http"
)

// NextStepFor tells the caller how to continue a login for provider. Third-party
// providers have no redirect flow yet and are rejected explicitly.
func NextStepFor(provider Provider, tokenID string, action Action) (NextStep, error) {
	switch provider {
	case ProviderLocal:
		return NextStep{
			Method: http.MethodPost,
			Path:   fmt.Sprintf("/security/%s/local/check/%s", action, tokenID),
			Params: []string{"email", "password"},
		}, nil
	case ProviderGoogle, ProviderGitHub, ProviderMicrosoft:
		return NextStep{}, fmt.Errorf("%w: %s is not yet supported", ErrUnsupportedProvider, provider)
	default:
		return NextStep{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

func twoFactorStep(tokenID string) NextStep {
	return NextStep{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/security/%s/local/2fa/%s", ActionAuth, tokenID),
		Params: []string{"code"},
	}
}
