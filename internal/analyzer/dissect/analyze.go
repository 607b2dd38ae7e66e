package dissect

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"netsift/internal/analyzer/capture"
	"netsift/internal/analyzer/dnsrecon"
	"netsift/internal/analyzer/filter"
	"netsift/pkg/model"
)

// ErrUnavailable 表示抓包整体不可用（文件缺失、为空、无法读取或链路层不支持），
// 此时没有任何结果，区别于“分析成功但没有记录”。
var ErrUnavailable = errors.New("抓包不可分析")

type Options struct {
	// Resolver 为 nil 时不做域名解析。
	Resolver dnsrecon.Resolver
	// IgnoredHosts 为 nil 时使用 dnsrecon.DefaultIgnoredHosts；传空切片表示不过滤。
	IgnoredHosts []string
	Prefilter    bool
	Logger       logrus.FieldLogger
}

type Analyzer struct {
	opts Options
	log  logrus.FieldLogger
}

func NewAnalyzer(opts Options) *Analyzer {
	if opts.IgnoredHosts == nil {
		opts.IgnoredHosts = dnsrecon.DefaultIgnoredHosts
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Analyzer{opts: opts, log: log}
}

// Analyze 对一个离线抓包文件做一次完整分析。
// 抓包不可用时返回 (nil, err)，err 匹配 ErrUnavailable；否则总是返回结果。
func (a *Analyzer) Analyze(path string) (*model.Result, error) {
	log := a.log.WithField("capture", path)

	src, err := capture.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w：%w", ErrUnavailable, err)
	}
	defer src.Close()

	dec, err := capture.NewDecoder(src.LinkType())
	if err != nil {
		return nil, fmt.Errorf("%w：%w", ErrUnavailable, err)
	}

	var pf *filter.Prefilter
	if a.opts.Prefilter && src.LinkType() == layers.LinkTypeEthernet {
		if pf, err = filter.NewPrefilter(); err != nil {
			log.WithError(err).Warn("BPF 预过滤不可用，改为全量解码")
			pf = nil
		}
	}

	d := NewDissector(dec, dnsrecon.NewExtractor(a.opts.Resolver, a.opts.IgnoredHosts), pf)
	if err := d.Run(src); err != nil {
		log.WithError(err).Debug("抓包读取提前结束，保留已解析的部分")
	}

	st := d.Stats()
	res := d.Result()
	log.WithFields(logrus.Fields{
		"format":   src.Format(),
		"link":     src.LinkType().String(),
		"frames":   st.Frames,
		"decoded":  st.Decoded,
		"filtered": st.Filtered,
		"tcp":      len(res.TCP),
		"udp":      len(res.UDP),
		"http":     len(res.HTTP),
		"dns":      len(res.DNS),
	}).Debug("抓包分析完成")
	return res, nil
}
