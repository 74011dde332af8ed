// Package docserver serves the letter templating endpoint used by the
// delivery backend and by browsers for printable previews.
package docserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinicletter/log"
	"clinicletter/render"
)

const (
	ReturnHTML   = "html"
	ReturnBase64 = "base64"

	previewAddress = "London\nEN6 8GH"
)

type PatientInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type GenerateRequest struct {
	LetterContent string      `json:"letterContent"`
	PatientInfo   PatientInfo `json:"patientInfo"`
	ReturnType    string      `json:"returnType"`
}

type GenerateResponse struct {
	Success  bool   `json:"success"`
	Base64   string `json:"base64"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
}

type Server struct {
	letterhead render.Letterhead
	logo       string
	now        func() time.Time
	engine     *gin.Engine
}

type Option func(*Server)

// WithLogo embeds the PNG at path as a data URI. A missing file is logged
// and the documents are produced without a logo.
func WithLogo(path string) Option {
	return func(s *Server) {
		if path == "" {
			return
		}
		b, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("docserver logo: %v", err)
			return
		}
		s.logo = "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(lh render.Letterhead, opts ...Option) *Server {
	s := &Server{letterhead: lh, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/api/generate-pdf", s.generate)
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Infof("docserver listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)

		c.Next()

		msg := fmt.Sprintf("%s %s %d %dms id=%s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Milliseconds(), reqID)
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error(msg)
		case status >= 400:
			log.Warn(msg)
		default:
			log.Info(msg)
		}
	}
}

var (
	breakRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphRe = regexp.MustCompile(`(?i)</p>\s*<p>`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// CleanContent normalises line breaks, non-breaking spaces and the
// whitespace between paragraphs.
func CleanContent(s string) string {
	s = breakRe.ReplaceAllString(s, "<br>")
	s = paragraphRe.ReplaceAllString(s, "</p><p>")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.TrimSpace(s)
}

// Filename is clinicletter_<name>.pdf with the name lowercased and
// whitespace runs replaced by underscores.
func Filename(patientName string) string {
	if patientName == "" {
		patientName = "patient"
	}
	return "clinicletter_" + strings.ToLower(spaceRe.ReplaceAllString(patientName, "_")) + ".pdf"
}

func (s *Server) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	p := req.PatientInfo
	ctx := pongo2.Context{
		"letterhead":    s.letterhead,
		"logo":          s.logo,
		"date":          s.now().Format("2 January 2006"),
		"content":       CleanContent(req.LetterContent),
		"patient_name":  p.Name,
		"patient_email": p.Email,
		"filename":      Filename(p.Name),
	}

	switch req.ReturnType {
	case ReturnBase64:
		ctx["patient_address"] = p.Address
		out, err := simpleTpl.Execute(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, GenerateResponse{
			Success:  true,
			Base64:   base64.StdEncoding.EncodeToString([]byte(out)),
			Filename: Filename(p.Name),
			Type:     ReturnHTML,
		})
	case "", ReturnHTML:
		addr := p.Address
		if addr == "" {
			addr = previewAddress
		}
		ctx["address"] = strings.Split(addr, "\n")
		ctx["contact"] = strings.Split(s.letterhead.Contact, " | ")
		out, err := printTpl.Execute(ctx)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown returnType " + req.ReturnType})
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	log.Errorf("generate-pdf: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate preview", "details": err.Error()})
}
