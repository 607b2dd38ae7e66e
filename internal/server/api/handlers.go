package api

import (
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"netsift/internal/analyzer/dissect"
	"netsift/internal/server/storage"
	"netsift/pkg/model"
)

// Analyzer 对服务端可访问的抓包路径做一次分析。
type Analyzer interface {
	Analyze(path string) (*model.Result, error)
}

type Handlers struct {
	store       storage.Store
	analyzer    Analyzer
	captureRoot string
	log         logrus.FieldLogger
	newID       func() string
	now         func() time.Time
}

// NewHandlers 创建 API 处理器。captureRoot 为服务端分析允许读取的目录，为空时关闭 analyze 接口。
func NewHandlers(store storage.Store, analyzer Analyzer, captureRoot string, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{
		store:       store,
		analyzer:    analyzer,
		captureRoot: captureRoot,
		log:         log,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func (h *Handlers) Upload(c *gin.Context) {
	var rep model.Report
	if err := c.ShouldBindJSON(&rep); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON 解析失败：" + err.Error()})
		return
	}

	// 只做最基本的校验，避免脏数据写入数据库。
	if strings.TrimSpace(rep.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id 不能为空"})
		return
	}
	if rep.Result == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result 不能为空"})
		return
	}
	if msg := validateResult(rep.Result); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = h.now().UTC()
	}

	if err := h.store.Insert(c.Request.Context(), &rep); err != nil {
		h.log.WithError(err).WithField("report_id", rep.ID).Error("写入报告失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "写入数据库失败：" + err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

type analyzeRequest struct {
	CapturePath string `json:"capture_path"`
}

func (h *Handlers) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON 解析失败：" + err.Error()})
		return
	}
	if req.CapturePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capture_path 不能为空"})
		return
	}

	path, ok := h.resolveCapture(req.CapturePath)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "capture_path 不在允许的目录内"})
		return
	}

	res, err := h.analyzer.Analyze(path)
	if errors.Is(err, dissect.ErrUnavailable) {
		h.log.WithError(err).WithField("capture", path).Warn("抓包不可分析")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "分析失败：" + err.Error()})
		return
	}

	rep := &model.Report{
		ID:          h.newID(),
		CapturePath: path,
		CreatedAt:   h.now().UTC(),
		Result:      res,
	}
	if err := h.store.Insert(c.Request.Context(), rep); err != nil {
		h.log.WithError(err).WithField("report_id", rep.ID).Error("写入报告失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "写入数据库失败：" + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rep)
}

func (h *Handlers) GetReport(c *gin.Context) {
	rep, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "报告不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败：" + err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handlers) Query(c *gin.Context) {
	ip := c.Query("ip")
	if net.ParseIP(ip) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip 参数非法"})
		return
	}

	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 2000 {
			limit = v
		}
	}

	rows, err := h.store.QueryByIP(c.Request.Context(), ip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败：" + err.Error()})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// resolveCapture 把请求中的路径限定在 captureRoot 之内；相对路径按 captureRoot 解析。
func (h *Handlers) resolveCapture(p string) (string, bool) {
	if h.captureRoot == "" {
		return "", false
	}
	root, err := filepath.Abs(h.captureRoot)
	if err != nil {
		return "", false
	}
	full := filepath.Clean(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func validateResult(res *model.Result) string {
	for _, group := range [][]model.Connection{res.TCP, res.UDP} {
		for _, conn := range group {
			if net.ParseIP(conn.Src) == nil || net.ParseIP(conn.Dst) == nil {
				return "src/dst 非法"
			}
			if !validPort(conn.SrcPort) || !validPort(conn.DstPort) {
				return "sport/dport 非法"
			}
		}
	}
	for _, req := range res.HTTP {
		if req.Host == "" || req.Method == "" {
			return "http 请求缺少 host/method"
		}
	}
	for _, q := range res.DNS {
		if q.Hostname == "" {
			return "dns 请求缺少 hostname"
		}
	}
	return ""
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
