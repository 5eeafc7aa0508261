package codec

import "fmt"

// DecodeError 输入字节无法解析为受支持的图片格式
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode image (%s): %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError 处理后的缓冲无法编码为 PNG
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode png: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
