package main

import (
	"flag"
	"log"
	"os"

	"github.com/qianlnk/werewolf-session/api"
	"github.com/qianlnk/werewolf-session/config"
	"github.com/qianlnk/werewolf-session/services"
	"github.com/qianlnk/werewolf-session/store"
)

func main() {
	// 设置日志格式，包含文件名和行号
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	configPath := flag.String("config", os.Getenv("WEREWOLF_CONFIG"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		log.Fatal("打开存储失败: ", err)
	}
	defer st.Close()

	sockets := services.NewWebSocketManager(cfg.WS.WriteTimeout, cfg.WS.PingInterval)
	games := services.NewGameManager(st,
		services.WithNotifier(sockets),
		services.WithMessenger(sockets),
		services.WithDefaultCapacity(cfg.Session.DefaultCapacity),
	)
	log.Printf("初始化完成: store=%s", cfg.Store.Driver)

	r := api.NewRouter(games, sockets)
	log.Printf("服务器启动在 %s", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatal("服务器启动失败: ", err)
	}
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == config.DriverSQLite {
		return store.NewSQLiteStore(cfg.DSN)
	}
	return store.NewMemoryStore(), nil
}
