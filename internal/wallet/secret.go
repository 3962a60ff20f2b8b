package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// KeyFromSecretVersion reads a hex private key from a Secret Manager secret
// version. Credentials come from the ambient Application Default Credentials.
func KeyFromSecretVersion(ctx context.Context, name string) (*ecdsa.PrivateKey, error) {
	if !strings.HasPrefix(name, "projects/") || !strings.Contains(name, "/versions/") {
		return nil, fmt.Errorf("secret version %q must look like projects/<p>/secrets/<s>/versions/<v>", name)
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager client: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("access secret version %s: %w", name, err)
	}
	if resp.GetPayload() == nil || len(resp.GetPayload().GetData()) == 0 {
		return nil, fmt.Errorf("secret version %s is empty", name)
	}
	return KeyFromHex(string(resp.GetPayload().GetData()))
}
