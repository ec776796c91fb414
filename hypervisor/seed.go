package hypervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/metadata"
)

// The rendered NoCloud documents live in RunDir next to the seed disk and
// are removed together with it.
const (
	userDataFile = "user-data.yaml"
	metaDataFile = "meta-data.yaml"
)

// buildSeed renders the cloud-init NoCloud documents and packs them into a
// seed disk with cloud-localds. Returns "" when no SSH key import is
// configured — the guest then boots without a NoCloud datasource.
func (s *Supervisor) buildSeed(ctx context.Context, bootID, sshImportID string) (string, error) {
	if sshImportID == "" {
		return "", nil
	}

	cfg := &metadata.Config{
		InstanceID:  bootID,
		Hostname:    "sealvm",
		SSHImportID: sshImportID,
	}

	userData, err := metadata.UserData(cfg)
	if err != nil {
		return "", err
	}
	metaData, err := metadata.MetaData(cfg)
	if err != nil {
		return "", err
	}

	userPath := filepath.Join(s.conf.RunDir, userDataFile)
	metaPath := filepath.Join(s.conf.RunDir, metaDataFile)
	if err := os.WriteFile(userPath, userData, 0o600); err != nil {
		return "", fmt.Errorf("write user-data: %w", err)
	}
	if err := os.WriteFile(metaPath, metaData, 0o600); err != nil {
		return "", fmt.Errorf("write meta-data: %w", err)
	}

	seed := s.conf.VMSeedImage()
	out, err := exec.CommandContext(ctx, s.conf.CloudLocaldsBinary, seed, userPath, metaPath).CombinedOutput() //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("%w: cloud-localds: %v: %s", errdefs.ErrLaunchFailed, err, strings.TrimSpace(string(out)))
	}
	return seed, nil
}
