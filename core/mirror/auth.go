package mirror

import (
	"context"
	"fmt"

	"github.com/gaurav-prasanna/docmirror/core"
	"github.com/gaurav-prasanna/docmirror/core/config"
)

const (
	emailSelector    = `input[type="email"]`
	passwordSelector = `input[type="password"]`
	submitSelector   = `button[type="submit"]`
)

// Authenticate signs in on rawURL when it shows a login form. It reports
// whether a form was found; a page without one is not an error.
func Authenticate(ctx context.Context, page core.Page, rawURL string, auth config.AuthConfig) (bool, error) {
	if err := page.Navigate(ctx, rawURL, core.WaitLoad); err != nil {
		return false, err
	}

	found, err := page.WaitForSelector(ctx, emailSelector, auth.ProbeTimeout.Std())
	if err != nil {
		return false, fmt.Errorf("probing for login form: %w", err)
	}
	if !found {
		return false, nil
	}

	if err := page.Type(ctx, emailSelector, auth.Username); err != nil {
		return true, err
	}
	if err := page.Type(ctx, passwordSelector, auth.Password); err != nil {
		return true, err
	}
	if err := page.Click(ctx, submitSelector, core.WaitNetworkIdle); err != nil {
		return true, fmt.Errorf("submitting login form: %w", err)
	}
	return true, nil
}
