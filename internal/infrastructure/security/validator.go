// Package security classifies generated commands before they reach the shell.
//
// Rules are evaluated in a fixed order and the first match wins: built-in
// destructive checks, then user rules from the guardrail file, then built-in
// warnings. A user allow rule never hides the elevated-privileges warning.
// Commands handed to a nested shell (sh -c, eval) are checked as well.
// Validate holds no state beyond the rules compiled at construction, so the
// same text always gets the same verdict.
package security

import (
	"path"
	"regexp"
	"strings"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

const reasonElevated = "requires elevated privileges"

var (
	segmentSplit   = regexp.MustCompile(`&&|\|\||;|\||\n|\$\(|` + "`")
	homeRoot       = regexp.MustCompile(`^/(root|home|Users|home/[^/]+|Users/[^/]+)$`)
	blockDevice    = regexp.MustCompile(`>\s*/dev/(sd[a-z]|hd[a-z]|vd[a-z]|xvd[a-z]|nvme\d|mmcblk\d|disk\d)`)
	forkBombHead   = regexp.MustCompile(`([A-Za-z_:][A-Za-z0-9_:]*)\(\)\{`)
	remoteScript   = regexp.MustCompile(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z|da|k)?sh\b`)
	worldWritable  = regexp.MustCompile(`\bchmod\s+(-\w+\s+)*0?777\b`)
	rootedDelete   = regexp.MustCompile(`(?:^|[^\w.-])rm\s+(?:-\S+\s+)*?(?:-[A-Za-z]*[rR][A-Za-z]*|--recursive)\s+(?:-\S+\s+)*(?:--\s+)?["']?(?:/|~/?|\$HOME/?|\$\{HOME\}/?)\*?["']?(?:\s|$|[;&|)])`)
	assignmentWord = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)
	safeDevices    = map[string]bool{"/dev/null": true, "/dev/zero": true, "/dev/stdout": true, "/dev/stderr": true, "/dev/tty": true}
	wrapperWords   = map[string]bool{"sudo": true, "doas": true, "env": true, "command": true, "exec": true, "nohup": true, "time": true, "nice": true, "xargs": true}
	nestedShells   = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true}
	elevationWords = map[string]bool{"sudo": true, "doas": true, "pkexec": true}
)

// Short options of each wrapper that take a separate value, and long options
// that do the same when written without "=".
var (
	wrapperValueFlags = map[string]string{"sudo": "ugpChDrtU", "doas": "uC", "env": "uC", "nice": "n", "xargs": "InPLsdEa", "time": "fo"}
	longValueFlags    = map[string]bool{"--user": true, "--group": true, "--chdir": true, "--unset": true, "--adjustment": true, "--max-args": true, "--max-procs": true, "--delimiter": true, "--arg-file": true}
)

// Validator implements the SafetyValidator port.
type Validator struct {
	patterns []compiledPattern
}

// NewValidator loads user rules from path (embedded defaults when empty or missing).
func NewValidator(rulesPath string) (*Validator, error) {
	rules, err := loadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Validator{patterns: compiled}, nil
}

// NewBuiltinValidator returns a validator with only the built-in rules.
func NewBuiltinValidator() *Validator {
	return &Validator{}
}

// RuleCount reports how many user rules are loaded.
func (v *Validator) RuleCount() int {
	return len(v.patterns)
}

// Validate implements ports.SafetyValidator.
func (v *Validator) Validate(command string) domain.Verdict {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return domain.Blocked("empty-command", "empty command")
	}

	segments := splitSegments(trimmed)
	if verdict, ok := destructive(trimmed, segments); ok {
		return verdict
	}
	elevatedVerdict, elevated := elevation(segments)
	for _, p := range v.patterns {
		if p.re.MatchString(trimmed) {
			verdict := p.verdict()
			if verdict.Kind == domain.VerdictAllowed && elevated {
				return elevatedVerdict
			}
			return verdict
		}
	}
	if elevated {
		return elevatedVerdict
	}
	if verdict, ok := warning(trimmed); ok {
		return verdict
	}
	return domain.Allowed()
}

type segment struct {
	raw   []string
	words []string
}

func (s segment) name() string {
	if len(s.words) == 0 {
		return ""
	}
	return path.Base(s.words[0])
}

func splitSegments(command string) []segment {
	var out []segment
	for _, part := range segmentSplit.Split(command, -1) {
		part = strings.Trim(strings.TrimSpace(part), "()")
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		raw := make([]string, len(fields))
		for i, f := range fields {
			raw[i] = strings.TrimPrefix(strings.Trim(f, `"'`), `\`)
		}
		out = append(out, segment{raw: raw, words: stripWrappers(raw)})
	}
	return out
}

// stripWrappers drops privilege and environment prefixes so the real program is first.
func stripWrappers(words []string) []string {
	i := 0
	for i < len(words) {
		w := words[i]
		switch {
		case wrapperWords[path.Base(w)]:
			values := wrapperValueFlags[path.Base(w)]
			i++
			// sudo -iu root, env -i, xargs -n 1 and friends
			for i < len(words) && strings.HasPrefix(words[i], "-") && words[i] != "-" {
				flag := words[i]
				i++
				if flag == "--" {
					break
				}
				if takesValue(flag, values) && i < len(words) {
					i++
				}
			}
		case assignmentWord.MatchString(w):
			i++
		default:
			return words[i:]
		}
	}
	return nil
}

// takesValue reports whether flag consumes the next word. In a short group
// such as -iu the first value option ends the group; -uroot carries its value.
func takesValue(flag, values string) bool {
	if strings.HasPrefix(flag, "--") {
		return !strings.Contains(flag, "=") && longValueFlags[flag]
	}
	group := flag[1:]
	for j, r := range group {
		if strings.ContainsRune(values, r) {
			return j == len(group)-1
		}
	}
	return false
}

// nestedCommand returns the command text a segment hands to another shell.
func nestedCommand(seg segment) (string, bool) {
	args := seg.words
	switch name := seg.name(); {
	case name == "eval":
		if len(args) > 1 {
			return strings.Join(args[1:], " "), true
		}
	case nestedShells[name]:
		for i := 1; i < len(args) && strings.HasPrefix(args[i], "-"); i++ {
			if !strings.HasPrefix(args[i], "--") && strings.ContainsRune(args[i], 'c') && i+1 < len(args) {
				return strings.Join(args[i+1:], " "), true
			}
		}
	}
	return "", false
}

func destructive(command string, segments []segment) (domain.Verdict, bool) {
	if rootedDelete.MatchString(command) {
		return domain.Blocked("recursive-delete-root", "recursive delete of / or a home directory"), true
	}
	if isForkBomb(command) {
		return domain.Blocked("fork-bomb", "fork bomb"), true
	}
	if blockDevice.MatchString(command) {
		return domain.Blocked("block-device-write", "writes directly to a block device"), true
	}
	for _, seg := range segments {
		if inner, ok := nestedCommand(seg); ok {
			if verdict, ok := destructive(inner, splitSegments(inner)); ok {
				return verdict, true
			}
			continue
		}
		args := seg.words
		switch name := seg.name(); {
		case name == "rm":
			flags, targets := splitArgs(args[1:])
			if recursive(flags, true) {
				for _, t := range targets {
					if rootedTarget(t) {
						return domain.Blocked("recursive-delete-root", "recursive delete of "+t), true
					}
				}
			}
		case name == "dd":
			for _, a := range args[1:] {
				if dev, ok := strings.CutPrefix(a, "of="); ok && strings.HasPrefix(dev, "/dev/") && !safeDevices[dev] {
					return domain.Blocked("raw-device-write", "raw write to "+dev), true
				}
			}
		case strings.HasPrefix(name, "mkfs") || name == "wipefs":
			return domain.Blocked("format-filesystem", "formats or wipes a filesystem"), true
		case name == "chmod" || name == "chown" || name == "chgrp":
			flags, targets := splitArgs(args[1:])
			if recursive(flags, false) {
				for _, t := range targets {
					if strings.HasPrefix(t, "/") && path.Clean(t) == "/" {
						return domain.Blocked("recursive-permission-root", "recursive "+name+" on /"), true
					}
				}
			}
		}
	}
	return domain.Verdict{}, false
}

func elevation(segments []segment) (domain.Verdict, bool) {
	for _, seg := range segments {
		if inner, ok := nestedCommand(seg); ok {
			if verdict, ok := elevation(splitSegments(inner)); ok {
				return verdict, true
			}
		}
		first := path.Base(seg.raw[0])
		if elevationWords[first] {
			return domain.Warning("privilege-escalation", reasonElevated), true
		}
		if first == "su" {
			for _, a := range seg.raw[1:] {
				if a == "-c" || a == "--command" {
					return domain.Warning("privilege-escalation", reasonElevated), true
				}
			}
		}
	}
	return domain.Verdict{}, false
}

func warning(command string) (domain.Verdict, bool) {
	if remoteScript.MatchString(command) {
		return domain.Warning("remote-script", "pipes a downloaded script into a shell"), true
	}
	if worldWritable.MatchString(command) {
		return domain.Warning("world-writable", "grants world-writable permissions"), true
	}
	return domain.Verdict{}, false
}

func splitArgs(args []string) (flags, targets []string) {
	endOfFlags := false
	for _, a := range args {
		switch {
		case endOfFlags:
			targets = append(targets, a)
		case a == "--":
			endOfFlags = true
		case strings.HasPrefix(a, "-") && len(a) > 1:
			flags = append(flags, a)
		default:
			targets = append(targets, a)
		}
	}
	return flags, targets
}

// recursive reports a -r/-R/--recursive flag. lower controls whether -r counts
// (chmod -r means something else).
func recursive(flags []string, lower bool) bool {
	for _, f := range flags {
		if f == "--recursive" {
			return true
		}
		if strings.HasPrefix(f, "--") {
			continue
		}
		if strings.ContainsRune(f, 'R') || (lower && strings.ContainsRune(f, 'r')) {
			return true
		}
	}
	return false
}

func rootedTarget(target string) bool {
	t := strings.TrimSuffix(target, "*")
	switch t {
	case "~", "~/", "$HOME", "$HOME/", "${HOME}", "${HOME}/":
		return true
	}
	if !strings.HasPrefix(t, "/") {
		return false
	}
	clean := path.Clean(t)
	return clean == "/" || homeRoot.MatchString(clean)
}

func isForkBomb(command string) bool {
	compact := strings.Join(strings.Fields(command), "")
	for _, m := range forkBombHead.FindAllStringSubmatch(compact, -1) {
		name := m[1]
		if strings.Contains(compact, name+"|"+name+"&") {
			return true
		}
	}
	return false
}

var _ ports.SafetyValidator = (*Validator)(nil)
