package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"

	"github.com/Versifine/packetlib/internal/config"
	"github.com/Versifine/packetlib/internal/container"
	"github.com/Versifine/packetlib/internal/proxy"
)

// TestPacketHooks 测试根据配置构建 hook
func TestPacketHooks(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.HooksConfig
		count int
	}{
		{"无hook", config.HooksConfig{}, 0},
		{"仅丢弃", config.HooksConfig{DropPackets: []uint32{packet.IDText}}, 1},
		{"丢弃和日志", config.HooksConfig{LogPackets: true, DropPackets: []uint32{packet.IDText}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(packetHooks(tt.cfg)); got != tt.count {
				t.Errorf("packetHooks() 返回 %d 个 hook, 期望 %d", got, tt.count)
			}
		})
	}

	hooks := packetHooks(config.HooksConfig{DropPackets: []uint32{packet.IDText}})
	c, err := container.FromPacket(nil, &packet.Text{})
	if err != nil {
		t.Fatalf("FromPacket() 返回错误: %v", err)
	}
	if hooks[0].OnPacket(c, true) {
		t.Error("Text 包应被丢弃")
	}
}

// TestSessionEvent 测试会话信息转换为事件
func TestSessionEvent(t *testing.T) {
	info := proxy.SessionInfo{ID: uuid.New(), Addr: "127.0.0.1:50000", Identity: "Alex"}
	e := sessionEvent(info)
	if e.SessionID != info.ID || e.Addr != info.Addr || e.Identity != info.Identity {
		t.Errorf("sessionEvent() = %+v, 期望与 %+v 一致", e, info)
	}
}
