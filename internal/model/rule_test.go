package model

import "testing"

func TestRuleString(t *testing.T) {
	tests := []struct {
		in   Rule
		want string
	}{
		{Rule{Type: "PROCESS-NAME", Value: "OneDrive.exe", Action: "DIRECT"}, "PROCESS-NAME,OneDrive.exe,DIRECT"},
		{Rule{Type: "GEOIP", Value: "CN", Action: "DIRECT"}, "GEOIP,CN,DIRECT"},
		{Rule{Type: "MATCH", Action: "Other"}, "MATCH,Other"},
		{Rule{Type: "IP-CIDR", Value: "1.1.1.1/32", Action: "PROXY", Options: []string{"no-resolve"}}, "IP-CIDR,1.1.1.1/32,PROXY,no-resolve"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Fatalf("String()=%q, want=%q", got, tt.want)
		}
	}
}
