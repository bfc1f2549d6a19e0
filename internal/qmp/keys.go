package qmp

import (
	"fmt"
	"strings"
	"unicode"
)

// qcodes is the EN-US subset of QEMU's QKeyCode enum accepted by send-key
var qcodes = func() map[string]bool {
	set := map[string]bool{}
	for _, k := range strings.Fields(`
		esc 1 2 3 4 5 6 7 8 9 0 minus equal backspace tab
		q w e r t y u i o p bracket_left bracket_right ret ctrl
		a s d f g h j k l semicolon apostrophe grave_accent shift backslash
		z x c v b n m comma dot slash shift_r kp_multiply alt spc caps_lock
		f1 f2 f3 f4 f5 f6 f7 f8 f9 f10 f11 f12 num_lock scroll_lock
		kp_0 kp_1 kp_2 kp_3 kp_4 kp_5 kp_6 kp_7 kp_8 kp_9
		kp_subtract kp_add kp_decimal kp_enter kp_divide kp_equals kp_comma
		less ctrl_r alt_r sysrq home up pgup left right end down pgdn
		insert delete meta_l meta_r menu pause print
		audiomute volumedown volumeup`) {
		set[k] = true
	}
	return set
}()

// keyAliases maps friendly names to qcodes
var keyAliases = map[string]string{
	"enter":    "ret",
	"return":   "ret",
	"space":    "spc",
	"escape":   "esc",
	"del":      "delete",
	"bksp":     "backspace",
	"control":  "ctrl",
	"option":   "alt",
	"cmd":      "meta_l",
	"super":    "meta_l",
	"win":      "meta_l",
	"meta":     "meta_l",
	"pageup":   "pgup",
	"pagedown": "pgdn",
}

// plainChars maps unshifted punctuation to qcodes
var plainChars = map[rune]string{
	' ':  "spc",
	'\n': "ret",
	'\t': "tab",
	'-':  "minus",
	'=':  "equal",
	'[':  "bracket_left",
	']':  "bracket_right",
	'\\': "backslash",
	'\'': "apostrophe",
	',':  "comma",
	'.':  "dot",
	'/':  "slash",
	'`':  "grave_accent",
	';':  "semicolon",
}

// shiftedChars maps characters typed with shift to their base qcode
var shiftedChars = map[rune]string{
	':': "semicolon",
	'!': "1",
	'@': "2",
	'#': "3",
	'$': "4",
	'%': "5",
	'^': "6",
	'&': "7",
	'*': "8",
	'(': "9",
	')': "0",
	'_': "minus",
	'+': "equal",
	'{': "bracket_left",
	'}': "bracket_right",
	'|': "backslash",
	'"': "apostrophe",
	'<': "comma",
	'>': "dot",
	'?': "slash",
	'~': "grave_accent",
}

// KeyName resolves a key name such as "Enter", "ctrl" or "f5" to its qcode
func KeyName(name string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[k]; ok {
		k = alias
	}
	if qcodes[k] {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		if codes, err := CharKeys(r[0]); err == nil && len(codes) == 1 {
			return codes[0], nil
		}
	}
	return "", fmt.Errorf("%w for key %q", ErrUnknownKey, name)
}

// CharKeys returns the qcodes pressed together to type r on an EN-US layout
func CharKeys(r rune) ([]string, error) {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return []string{string(r)}, nil
	case r >= 'A' && r <= 'Z':
		return []string{"shift", string(unicode.ToLower(r))}, nil
	}
	if k, ok := plainChars[r]; ok {
		return []string{k}, nil
	}
	if k, ok := shiftedChars[r]; ok {
		return []string{"shift", k}, nil
	}
	return nil, fmt.Errorf("%w for character %q", ErrUnknownKey, r)
}

// ParseCombo splits "ctrl+shift+s" or "ctrl-alt-del" into key names
func ParseCombo(combo string) []string {
	combo = strings.TrimSpace(combo)
	if len([]rune(combo)) == 1 {
		return []string{combo}
	}
	parts := strings.FieldsFunc(combo, func(r rune) bool { return r == '+' || r == '-' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func keyValues(codes []string) []KeyValue {
	out := make([]KeyValue, len(codes))
	for i, c := range codes {
		out[i] = KeyValue{Type: "qcode", Data: c}
	}
	return out
}
