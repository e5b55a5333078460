package server

import (
	"crypto/tls"
	"net/http"
	"net/http/httputil"

	"github.com/golang/glog"
)

// setupProxy forwards routes the server does not own to the page renderer.
func (s *MorphServer) setupProxy() {
	upstream := s.config.ProxyURL

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.config.InsecureProxy {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	s.reverseProxy = &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = upstream.Scheme
			req.URL.Host = upstream.Host
			req.Host = upstream.Host

			if upstream.RawQuery != "" {
				if req.URL.RawQuery == "" {
					req.URL.RawQuery = upstream.RawQuery
				} else {
					req.URL.RawQuery = upstream.RawQuery + "&" + req.URL.RawQuery
				}
			}
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			glog.Infof("[proxy]%s %s: %v\n", r.Method, r.URL.Path, err)
			http.Error(w, "Upstream unavailable", http.StatusBadGateway)
		},
	}

	glog.Infof("[proxy]unknown routes are forwarded to %s\n", upstream.String())
	if s.config.InsecureProxy {
		glog.Warningf("[proxy]certificate verification disabled for upstream requests\n")
	}
}
