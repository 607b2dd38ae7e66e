package filter

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// TransportBPF 返回一段 classic BPF 程序，假设链路层为 Ethernet：
//   - IPv4 只放行 protocol 为 TCP/UDP 的帧
//   - IPv6 只放行 next header 为 TCP/UDP 的帧
//   - 其它 EtherType（VLAN、ARP 等）一律放行，交给解码器判断
//
// 被丢弃的帧本来也不会产生任何记录，所以开启与否不影响分析结果。
func TransportBPF() ([]bpf.RawInstruction, error) {
	ins := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},                         // 0: EtherType
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 3}, // 1: IPv4? 否则去 5

		bpf.LoadAbsolute{Off: 23, Size: 1},                                  // 2: IPv4 protocol
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipTrue: 6},                // 3: TCP -> accept
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 5, SkipFalse: 4}, // 4: UDP -> accept，否则 drop

		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86dd, SkipFalse: 4}, // 5: IPv6? 否则 accept
		bpf.LoadAbsolute{Off: 20, Size: 1},                         // 6: IPv6 next header
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipTrue: 2},       // 7: TCP -> accept
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipTrue: 1},      // 8: UDP -> accept

		bpf.RetConstant{Val: 0},      // 9: drop
		bpf.RetConstant{Val: 0xFFFF}, // 10: accept
	}

	raw, err := bpf.Assemble(ins)
	if err != nil {
		return nil, fmt.Errorf("组装 BPF 失败：%w", err)
	}
	return raw, nil
}

// Prefilter 在用户态用 BPF 虚拟机评估离线帧，不依赖内核抓包接口。
type Prefilter struct {
	vm *bpf.VM
}

func NewPrefilter() (*Prefilter, error) {
	raw, err := TransportBPF()
	if err != nil {
		return nil, err
	}
	ins, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("反汇编 BPF 失败")
	}
	vm, err := bpf.NewVM(ins)
	if err != nil {
		return nil, fmt.Errorf("创建 BPF 虚拟机失败：%w", err)
	}
	return &Prefilter{vm: vm}, nil
}

// Accept 判断一帧 Ethernet 数据是否需要进入解码流程。
// 帧长度不足以读取过滤字段时 VM 返回 0，即丢弃，这类帧解码同样会失败。
func (p *Prefilter) Accept(frame []byte) bool {
	n, err := p.vm.Run(frame)
	return err == nil && n > 0
}
