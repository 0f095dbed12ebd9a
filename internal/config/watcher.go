package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bjl-server/common/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// StartWatch 监听配置中心变更，变更时回调 onChange(old, new)
// 仅在 NACOS_SERVER_ADDR 配置时生效；本地文件配置不支持热更新
func StartWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) == "" {
		logger.Info("nacos not configured, config watch disabled")
		return nil
	}
	return startNacosWatch(ctx, onChange)
}

func startNacosWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if serverAddr == "" {
		return errors.New("NACOS_SERVER_ADDR not set")
	}

	dataID := strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if dataID == "" {
		return errors.New("NACOS_DATA_ID not set")
	}

	namespace := strings.TrimSpace(os.Getenv("NACOS_NAMESPACE"))
	if namespace == "" {
		namespace = "public"
	}

	group := strings.TrimSpace(os.Getenv("NACOS_GROUP"))
	if group == "" {
		group = "DEFAULT_GROUP"
	}

	timeoutMS := 5000
	if s := strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS")); s != "" {
		if t, err := strconv.Atoi(s); err == nil && t > 0 {
			timeoutMS = t
		}
	}

	serverConfigs, err := parseServerAddrs(serverAddr)
	if err != nil {
		return err
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         namespace,
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if u, p := os.Getenv("NACOS_USERNAME"), os.Getenv("NACOS_PASSWORD"); u != "" && p != "" {
		clientConfig.Username = u
		clientConfig.Password = p
	}

	configClient, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return fmt.Errorf("failed to create nacos config client for watch: %w", err)
	}
	nacosConfigClient = configClient

	err = configClient.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			newCfg, parseErr := parseConfigPayload(dataId, []byte(data))
			if parseErr != nil {
				logger.Error("nacos config parse failed",
					zap.String("data_id", dataId), zap.Error(parseErr))
				return
			}

			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}

			logger.Info("nacos config reloaded",
				zap.String("namespace", namespace),
				zap.String("group", group),
				zap.String("data_id", dataId))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to listen nacos config: %w", err)
	}

	logger.Info("nacos config watch started",
		zap.String("server", serverAddr),
		zap.String("data_id", dataID),
		zap.String("namespace", namespace),
		zap.String("group", group))
	return nil
}

// parseServerAddrs 解析逗号分隔的 host:port 列表
func parseServerAddrs(serverAddr string) ([]constant.ServerConfig, error) {
	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{
			IpAddr: parts[0],
			Port:   port,
		})
	}
	if len(serverConfigs) == 0 {
		return nil, errors.New("no valid server address in NACOS_SERVER_ADDR")
	}
	return serverConfigs, nil
}

// parseConfigPayload 按 dataId 后缀选择解析器，未知后缀先 YAML 后 JSON
func parseConfigPayload(dataID string, data []byte) (*Config, error) {
	var cfg Config
	switch filepath.Ext(dataID) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if jerr := json.Unmarshal(data, &cfg); jerr != nil {
				return nil, err
			}
		}
	}
	return &cfg, nil
}
