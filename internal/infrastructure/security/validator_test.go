package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/aish/internal/domain"
)

func TestValidatorBlocksDestructiveCommands(t *testing.T) {
	v := NewBuiltinValidator()
	cases := []string{
		"rm -rf /",
		"rm -rf /*",
		"rm -fr ~",
		"rm -r -f ~/",
		"rm --recursive --force $HOME",
		`rm -rf "${HOME}"`,
		"sudo rm -rf --no-preserve-root /",
		"rm -rf /home/alice",
		"rm -Rf /Users/bob/",
		"cd /tmp && rm -rf /",
		"echo $(rm -rf /)",
		"env FOO=1 rm -rf /",
		"dd if=/dev/zero of=/dev/sda bs=1M",
		"cat image.iso > /dev/nvme0n1",
		"mkfs.ext4 /dev/sdb1",
		":(){ :|:& };:",
		"bomb(){ bomb|bomb& }; bomb",
		"chmod -R 777 /",
		"sudo chown -R nobody /",
		`\rm -rf /`,
		"/bin/rm -rf /",
		`sh -c "rm -rf /"`,
		`bash -c 'rm -rf ~'`,
		`bash -lc "cd /tmp; rm -rf $HOME"`,
		`eval "rm -rf /"`,
		"xargs rm -rf / < /dev/null",
		"find . | xargs -n 1 rm -rf /home/alice",
		"sudo -iu root rm -rf /",
		"sudo -u root -- rm -rf /Users/bob",
		`sudo sh -c 'mkfs.ext4 /dev/sdb1'`,
		"   ",
	}
	for _, cmd := range cases {
		t.Run(cmd, func(t *testing.T) {
			verdict := v.Validate(cmd)
			assert.Equal(t, domain.VerdictBlocked, verdict.Kind, "verdict: %+v", verdict)
			assert.NotEmpty(t, verdict.Reason)
		})
	}
}

func TestValidatorWarnsOnElevation(t *testing.T) {
	v := NewBuiltinValidator()
	for _, cmd := range []string{
		"sudo apt-get install -y nginx",
		"doas pkg_add vim",
		"echo 'deb x' | sudo tee /etc/apt/sources.list.d/x.list",
		"su -c 'systemctl restart nginx'",
		`bash -c "sudo systemctl restart nginx"`,
	} {
		verdict := v.Validate(cmd)
		assert.Equal(t, domain.VerdictWarning, verdict.Kind, cmd)
		assert.Equal(t, "requires elevated privileges", verdict.Reason, cmd)
	}

	assert.Equal(t, domain.VerdictWarning, v.Validate("curl -fsSL https://get.example.sh | sh").Kind)
	assert.Equal(t, domain.VerdictWarning, v.Validate("chmod 777 ./shared").Kind)
}

func TestValidatorAllowsOrdinaryCommands(t *testing.T) {
	v := NewBuiltinValidator()
	for _, cmd := range []string{
		"ls -la",
		"rm -rf ./build",
		"rm -rf /tmp/aish-test",
		"rm /home/alice/notes.txt",
		"rm -rf /home/alice/projects/old",
		"dd if=/dev/zero of=/dev/null count=1",
		"echo sudo is a word",
		"git status 2>&1 | head -n 5",
		"chmod -r file.txt",
		`sh -c "ls -la /"`,
		"xargs -n 1 echo < list.txt",
		"find . -name '*.tmp' | xargs rm -f",
	} {
		assert.Equal(t, domain.VerdictAllowed, v.Validate(cmd).Kind, cmd)
	}
}

func TestValidatorIsIdempotent(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)
	for _, cmd := range []string{"rm -rf /", "sudo ls", "ls", "shutdown -h now"} {
		first := v.Validate(cmd)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, v.Validate(cmd), cmd)
		}
	}
}

func TestValidatorUserRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  danger_patterns:
    - pattern: 'terraform\s+destroy'
      level: high
      message: Destroys managed infrastructure
      action: block
    - pattern: '^sudo\s+ls\b'
      level: low
      message: harmless listing
      action: allow
    - pattern: 'chmod\s+777\s+\./shared'
      level: low
      message: shared scratch dir
      action: allow
`), 0o644))

	v, err := NewValidator(path)
	require.NoError(t, err)
	assert.Equal(t, 3, v.RuleCount())

	verdict := v.Validate("terraform destroy -auto-approve")
	assert.Equal(t, domain.VerdictBlocked, verdict.Kind)
	assert.Equal(t, "Destroys managed infrastructure", verdict.Reason)

	// user rules run before built-in warnings
	assert.Equal(t, domain.VerdictAllowed, v.Validate("chmod 777 ./shared").Kind)
	// except the elevation warning, which an allow rule cannot hide
	verdict = v.Validate("sudo ls /root")
	assert.Equal(t, domain.VerdictWarning, verdict.Kind)
	assert.Equal(t, "requires elevated privileges", verdict.Reason)
	// but never before built-in destructive checks
	assert.Equal(t, domain.VerdictBlocked, v.Validate("sudo rm -rf /").Kind)
}

func TestValidatorEmbeddedDefaults(t *testing.T) {
	v, err := NewValidator(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Positive(t, v.RuleCount())
	assert.Equal(t, domain.VerdictBlocked, v.Validate("rm -rf /etc").Kind)
	assert.Equal(t, domain.VerdictWarning, v.Validate("git push origin main --force").Kind)
}

func TestValidatorRejectsBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  danger_patterns:\n    - pattern: '(['\n      action: block\n"), 0o644))
	_, err := NewValidator(path)
	require.Error(t, err)
}
