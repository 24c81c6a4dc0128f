package cfb

import (
	"reflect"
	"testing"
)

func TestNameChainFromPath(t *testing.T) {
	type args struct {
		s string
	}
	tests := []struct {
		name string
		args args
		want []string
	}{
		{
			name: "empty",
			args: args{s: ""},
			want: []string{},
		},
		{
			name: "root",
			args: args{s: "/"},
			want: []string{},
		},
		{
			name: "valid abs",
			args: args{s: "/foo/bar/baz/"},
			want: []string{"foo", "bar", "baz"},
		},
		{
			name: "valid rel",
			args: args{s: "foo/bar/baz"},
			want: []string{"foo", "bar", "baz"},
		},
		{
			name: "doubled separators",
			args: args{s: "//foo//bar"},
			want: []string{"foo", "bar"},
		},
		{
			name: "valid up",
			args: args{s: "foo/bar/../baz"},
			want: []string{"foo", "baz"},
		},
		{
			name: "abs up past root",
			args: args{s: "/../baz"},
			want: []string{"baz"},
		},
		{
			name: "invalid up",
			args: args{s: "foo/../../baz"},
			want: []string{},
		},
		{
			name: "dotted name",
			args: args{s: "..foo"},
			want: []string{"..foo"},
		},
		{
			name: "control chars",
			args: args{s: "/\x05SummaryInformation"},
			want: []string{"\x05SummaryInformation"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameChainFromPath(tt.args.s); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NameChainFromPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPathFromNameChain(t *testing.T) {
	type args struct {
		names []string
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "empty",
			args: args{names: []string{}},
			want: "/",
		},
		{
			name: "valid",
			args: args{names: []string{"foo", "bar", "baz"}},
			want: "/foo/bar/baz",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathFromNameChain(tt.args.names); got != tt.want {
				t.Errorf("PathFromNameChain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompareNames(t *testing.T) {
	tests := []struct {
		name        string
		left, right string
		want        Ordering
	}{
		{name: "equal", left: "Tags", right: "Tags", want: OrderEqual},
		{name: "case insensitive", left: "tags", right: "TAGS", want: OrderEqual},
		{name: "shorter first", left: "Zed", right: "Alpha", want: OrderLess},
		{name: "longer last", left: "Contents", right: "Tags", want: OrderGreater},
		{name: "same length", left: "Image", right: "Index", want: OrderLess},
		{name: "same length reversed", left: "Index", right: "Image", want: OrderGreater},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareNames(tt.left, tt.right); got != tt.want {
				t.Errorf("CompareNames(%q, %q) = %v, want %v", tt.left, tt.right, got, tt.want)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{name: "plain", arg: "Contents"},
		{name: "empty", arg: "", wantErr: true},
		{name: "slash", arg: "a/b", wantErr: true},
		{name: "bang", arg: "a!b", wantErr: true},
		{name: "max", arg: "abcdefghijklmnopqrstuvwxyz01234"},
		{name: "too long", arg: "abcdefghijklmnopqrstuvwxyz012345", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateName(tt.arg); (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
		})
	}
}
