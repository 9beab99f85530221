package security

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractCommands(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single", "ls -la", []string{"ls"}, false},
		{"pipe", "cat file.txt | grep foo | wc -l", []string{"cat", "grep", "wc"}, false},
		{"sequencers", "mkdir x; cd x && ls || echo fail", []string{"mkdir", "cd", "ls", "echo"}, false},
		{"assignment prefix", "VAR=1 make build", []string{"make"}, false},
		{"double assignment", "A=1 B=2 env", []string{"env"}, false},
		{"substitution", "echo $(date +%s)", []string{"echo", "date"}, false},
		{"nested substitution", "echo $(dirname $(which go))", []string{"echo", "dirname", "which"}, false},
		{"backticks", "echo `hostname`", []string{"echo", "hostname"}, false},
		{"keywords skipped", "if true; then ls; fi", []string{"true", "ls"}, false},
		{"while loop", "while sleep 1; do date; done", []string{"sleep", "date"}, false},
		{"sudo reported", "sudo rm -rf /tmp/x", []string{"sudo", "rm"}, false},
		{"path basename", "/usr/bin/python3 script.py", []string{"python3"}, false},
		{"quoted pipe ignored", `echo "a | b"`, []string{"echo"}, false},
		{"unclosed quote", `echo "oops`, nil, true},
		{"unclosed single quote", "echo 'oops", nil, true},
		{"empty", "   ", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCommands(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractCommands(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractCommands(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractCommandsAssignmentProperty(t *testing.T) {
	for _, c := range []string{"ls", "grep", "make", "python3"} {
		got, err := ExtractCommands("VAR=1 " + c)
		if err != nil {
			t.Fatalf("ExtractCommands: %v", err)
		}
		if len(got) == 0 || got[0] != c {
			t.Errorf("ExtractCommands(%q) = %v, want first element %q", "VAR=1 "+c, got, c)
		}
	}
}

func TestExtractFilePaths(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"cp", "cp a.txt b.txt", []string{"a.txt", "b.txt"}},
		{"mv with flags", "mv -f src.go dst.go", []string{"src.go", "dst.go"}},
		{"mkdir", "mkdir -p some/deep/dir", []string{"some/deep/dir"}},
		{"chmod skips mode", "chmod 755 script.sh", []string{"script.sh"}},
		{"touch", "touch new.txt", []string{"new.txt"}},
		{"curl output", "curl -o out.html https://example.com", []string{"out.html"}},
		{"curl long output", "curl --output out.bin https://example.com", []string{"out.bin"}},
		{"wget", "wget -O page.html https://example.com", []string{"page.html"}},
		{"unzip", "unzip -d target archive.zip", []string{"target"}},
		{"redirect", "echo hi > result.txt", []string{"result.txt"}},
		{"append redirect", "date >> log.txt", []string{"log.txt"}},
		{"stderr redirect", "build 2> errors.log", []string{"errors.log"}},
		{"both redirect", "run &> all.log", []string{"all.log"}},
		{"no paths", "ls -la", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFilePaths(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractFilePaths(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateRmCommand(t *testing.T) {
	blocked := []string{
		"rm -rf /",
		"rm -rf /*",
		"rm -rf ~",
		"rm -rf ..",
		"rm -rf ../*",
		"rm -rf .*",
		"rm -rf /etc",
		"rm -rf /usr",
		"rm -rf /home",
		"rm -r *.txt",
		"rm --recursive build/*",
		"rm -r .config*",
		"rm -rf",
	}
	for _, cmd := range blocked {
		if err := ValidateRmCommand(cmd); err == nil {
			t.Errorf("ValidateRmCommand(%q) should block", cmd)
		}
	}

	allowed := []string{
		"rm file.txt",
		"rm -f stale.lock",
		"rm -rf build",
		"rm one.txt two.txt",
	}
	for _, cmd := range allowed {
		if err := ValidateRmCommand(cmd); err != nil {
			t.Errorf("ValidateRmCommand(%q) should pass, got %v", cmd, err)
		}
	}
}

func TestValidateRmDangerousTargetProperty(t *testing.T) {
	for target := range dangerousRmTargets {
		if err := ValidateRmCommand("rm -rf " + target); err == nil {
			t.Errorf("rm -rf %s should block", target)
		}
	}
}

func TestValidateKillCommand(t *testing.T) {
	tests := []struct {
		cmd     string
		blocked bool
		reason  string
	}{
		{"kill -9 1", true, "PID 1"},
		{"kill 1", true, "PID 1"},
		{"kill -9 42", true, "below 100"},
		{"kill -- -123", true, "process group"},
		{"kill", true, ""},
		{"kill -l", false, ""},
		{"kill --list", false, ""},
		{"kill 12345", false, ""},
		{"kill -TERM 12345", false, ""},
		{"kill -s KILL 54321", false, ""},
		{"kill -9 9999", false, ""},
		{"kill -15 12345", false, ""},
		{"kill -SIGTERM 12345", false, ""},
		{"kill -9 -123", true, "process group"},
		{"kill %1", false, ""},
	}
	for _, tt := range tests {
		err := ValidateKillCommand(tt.cmd)
		if (err != nil) != tt.blocked {
			t.Errorf("ValidateKillCommand(%q) err = %v, want blocked=%v", tt.cmd, err, tt.blocked)
			continue
		}
		if err != nil && tt.reason != "" && !strings.Contains(err.Error(), tt.reason) {
			t.Errorf("ValidateKillCommand(%q) reason %q should contain %q", tt.cmd, err, tt.reason)
		}
	}
}
