package common

import jsoniter "github.com/json-iterator/go"

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary
	// jsonSorted 会对 map key 排序，保证序列化结果稳定（用于缓存键/签名场景）
	jsonSorted = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
)

func JsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func JsonMarshalToString(v interface{}) (string, error) {
	return json.MarshalToString(v)
}

// JsonMarshalSorted 序列化时对 map key 排序，结果稳定
func JsonMarshalSorted(v interface{}) ([]byte, error) {
	return jsonSorted.Marshal(v)
}

// JsonMarshalToStringSorted 序列化时对 map key 排序，结果稳定
func JsonMarshalToStringSorted(v interface{}) (string, error) {
	return jsonSorted.MarshalToString(v)
}

func JsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func JsonUnmarshalFromString(str string, v interface{}) error {
	return json.UnmarshalFromString(str, v)
}
