package cache

import "fmt"

// 键语义：
// - roomKey(canvasID):   画布在线成员（ZSet<participantId, expireAtUnix>，score=expireAt）
// - colorsKey(canvasID): 画布内 participantId→color 映射（Hash）
// - canvasesKey():       画布索引集合（Set<canvasID>）
//
// {canvas:%s} 是 cluster hash tag，同一画布的键落在同一个 slot，Lua 脚本才能同时操作

const (
	keyRoomFmt     = "presence:canvas:{canvas:%s}"        // ZSet<participantId, expireAtUnix>
	keyColorsFmt   = "presence:canvas:colors:{canvas:%s}" // Hash<participantId -> color>
	keyCanvasesSet = "presence:canvases"                  // Set<canvasID>
)

func roomKey(canvasID string) string   { return fmt.Sprintf(keyRoomFmt, canvasID) }
func colorsKey(canvasID string) string { return fmt.Sprintf(keyColorsFmt, canvasID) }
func canvasesKey() string              { return keyCanvasesSet }
