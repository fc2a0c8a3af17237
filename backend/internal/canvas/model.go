package canvas

// Point 是采集时画布本地坐标系中的一个点（不做尺寸归一化）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke 一笔：从按下到抬起的连续绘制动作
type Stroke struct {
	ID       string  `json:"id"`       // 客户端生成，可能重复
	AuthorID string  `json:"authorId"` // 服务端按连接身份写入，不信任客户端
	Tool     string  `json:"tool"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Fill     bool    `json:"fill"`
	Points   []Point `json:"points"`
}

// Clone 深拷贝，points 切片不与原笔画共享底层数组
func (s Stroke) Clone() Stroke {
	out := s
	out.Points = make([]Point, len(s.Points))
	copy(out.Points, s.Points)
	return out
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Participant struct {
	ID     string  `json:"id"`
	Color  string  `json:"color"`
	Cursor *Cursor `json:"cursor,omitempty"`
}

func (p Participant) Clone() Participant {
	out := p
	if p.Cursor != nil {
		c := *p.Cursor
		out.Cursor = &c
	}
	return out
}
