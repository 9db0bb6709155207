package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const urlhausSample = `################################################################
# abuse.ch URLhaus Database Dump (CSV - recent URLs)           #
################################################################
#
# id,dateadded,url,url_status,last_online,threat,tags,urlhaus_link,reporter
"3001","2024-03-01 10:00:00","http://198.0.2.12/bins/mozi.m","online","2024-03-01 10:00:00","malware_download","elf,Mozi","https://urlhaus.abuse.ch/url/3001/","lrz_urlhaus"
"3002","2024-03-01 10:05:00","https://www.Evil.Example/payload.exe","online","2024-03-01 10:05:00","malware_download","exe","https://urlhaus.abuse.ch/url/3002/","abuse_ch"
"3003","2024-03-01 10:06:00","https://evil.example/other.exe","offline","","malware_download","","https://urlhaus.abuse.ch/url/3003/","abuse_ch"
`

func TestURLHausProvider_FetchBlockedHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlhausSample))
	}))
	defer server.Close()

	p := NewURLHausProvider(server.Client(), server.URL)
	hosts, err := p.FetchBlockedHosts(context.Background())
	if err != nil {
		t.Fatalf("FetchBlockedHosts failed: %v", err)
	}

	if len(hosts) != 2 {
		t.Fatalf("Expected 2 distinct hosts, got %d: %+v", len(hosts), hosts)
	}
	if hosts[0].Host != "198.0.2.12" {
		t.Errorf("Expected first host 198.0.2.12, got %s", hosts[0].Host)
	}
	if hosts[1].Host != "evil.example" {
		t.Errorf("Expected second host evil.example, got %s", hosts[1].Host)
	}
	if hosts[0].ThreatType != "malware_download" {
		t.Errorf("Expected threat type malware_download, got %s", hosts[0].ThreatType)
	}
	if strings.Join(hosts[0].Tags, ",") != "elf,Mozi" {
		t.Errorf("Unexpected tags %v", hosts[0].Tags)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !hosts[0].FirstSeen.Equal(want) {
		t.Errorf("Expected first seen %v, got %v", want, hosts[0].FirstSeen)
	}
	if hosts[0].Source != "abusech-urlhaus" {
		t.Errorf("Unexpected source %s", hosts[0].Source)
	}
}

func TestURLHausProvider_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := NewURLHausProvider(server.Client(), server.URL).FetchBlockedHosts(context.Background()); err == nil {
		t.Error("Expected error for non-200 status")
	}
}

func TestURLListProvider_FetchBlockedHosts(t *testing.T) {
	body := strings.Join([]string{
		"# OpenPhish community feed",
		"https://login.paypal-secure.example/signin",
		"https://login.paypal-secure.example/other",
		"",
		"// comment",
		"203.0.113.7:8080",
		"bad-host.example # inline comment",
		"http://",
	}, "\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	p := NewURLListProvider(server.Client(), "openphish", server.URL, "phishing")
	hosts, err := p.FetchBlockedHosts(context.Background())
	if err != nil {
		t.Fatalf("FetchBlockedHosts failed: %v", err)
	}

	var got []string
	for _, h := range hosts {
		got = append(got, h.Host)
		if h.Source != "openphish" || h.ThreatType != "phishing" {
			t.Errorf("Unexpected source/threat on %+v", h)
		}
	}

	want := "login.paypal-secure.example,203.0.113.7,bad-host.example"
	if strings.Join(got, ",") != want {
		t.Errorf("Expected hosts %s, got %s", want, strings.Join(got, ","))
	}
}
